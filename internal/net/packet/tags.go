package packet

import "fmt"

// RootTag selects the meaning of a top-level message inside a transport packet.
type RootTag byte

const (
	TagHostGame     RootTag = 0
	TagJoinGame     RootTag = 1
	TagStartGame    RootTag = 2
	TagRemoveGame   RootTag = 3
	TagRemovePlayer RootTag = 4
	TagGameData     RootTag = 5
	TagGameDataTo   RootTag = 6
	TagJoinedGame   RootTag = 7
	TagEndGame      RootTag = 8
	TagAlterGame    RootTag = 10
	TagKickPlayer   RootTag = 11
	TagWaitForHost  RootTag = 12
	TagRedirect     RootTag = 13
)

func (t RootTag) String() string {
	switch t {
	case TagHostGame:
		return "HostGame"
	case TagJoinGame:
		return "JoinGame"
	case TagStartGame:
		return "StartGame"
	case TagRemoveGame:
		return "RemoveGame"
	case TagRemovePlayer:
		return "RemovePlayer"
	case TagGameData:
		return "GameData"
	case TagGameDataTo:
		return "GameDataTo"
	case TagJoinedGame:
		return "JoinedGame"
	case TagEndGame:
		return "EndGame"
	case TagAlterGame:
		return "AlterGame"
	case TagKickPlayer:
		return "KickPlayer"
	case TagWaitForHost:
		return "WaitForHost"
	case TagRedirect:
		return "Redirect"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(t))
	}
}

// GameDataTag selects the meaning of one sub-message inside a game data batch.
type GameDataTag byte

const (
	GameDataData           GameDataTag = 1
	GameDataRpc            GameDataTag = 2
	GameDataSpawn          GameDataTag = 4
	GameDataDespawn        GameDataTag = 5
	GameDataSceneChange    GameDataTag = 6
	GameDataReady          GameDataTag = 7
	GameDataChangeSettings GameDataTag = 8
)

func (t GameDataTag) String() string {
	switch t {
	case GameDataData:
		return "Data"
	case GameDataRpc:
		return "Rpc"
	case GameDataSpawn:
		return "Spawn"
	case GameDataDespawn:
		return "Despawn"
	case GameDataSceneChange:
		return "SceneChange"
	case GameDataReady:
		return "Ready"
	case GameDataChangeSettings:
		return "ChangeSettings"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(t))
	}
}
