package game

import (
	"fmt"

	"github.com/innernet/server/internal/net/packet"
	"github.com/pkg/errors"
)

// OptionsLatestVersion is the newest options layout this server writes.
const OptionsLatestVersion byte = 4

// Options is the lobby configuration a host sends when creating a game and
// again whenever it changes settings. It travels as a bytes-and-size blob.
type Options struct {
	Version              byte
	MaxPlayers           byte
	Keywords             uint32
	MapID                byte
	PlayerSpeedMod       float32
	CrewLightMod         float32
	ImpostorLightMod     float32
	KillCooldown         float32
	NumCommonTasks       byte
	NumLongTasks         byte
	NumShortTasks        byte
	NumEmergencyMeetings int32
	NumImpostors         byte
	KillDistance         byte
	DiscussionTime       int32
	VotingTime           int32
	IsDefaults           bool
	EmergencyCooldown    byte // version 2+
	ConfirmImpostor      bool // version 3+
	VisualTasks          bool // version 3+
	AnonymousVotes       bool // version 4+
	TaskBarUpdates       byte // version 4+
}

// DefaultOptions mirrors the stock client's defaults.
func DefaultOptions() *Options {
	return &Options{
		Version:              OptionsLatestVersion,
		MaxPlayers:           10,
		Keywords:             1, // English
		PlayerSpeedMod:       1,
		CrewLightMod:         1,
		ImpostorLightMod:     1.5,
		KillCooldown:         15,
		NumCommonTasks:       1,
		NumLongTasks:         1,
		NumShortTasks:        2,
		NumEmergencyMeetings: 1,
		NumImpostors:         1,
		KillDistance:         1,
		DiscussionTime:       15,
		VotingTime:           120,
		IsDefaults:           true,
		EmergencyCooldown:    15,
		ConfirmImpostor:      true,
		VisualTasks:          true,
	}
}

// Serialize writes the options body for o.Version.
func (o *Options) Serialize(w *packet.Writer) {
	w.WriteByte(o.Version)
	w.WriteByte(o.MaxPlayers)
	w.WriteUint32(o.Keywords)
	w.WriteByte(o.MapID)
	w.WriteFloat32(o.PlayerSpeedMod)
	w.WriteFloat32(o.CrewLightMod)
	w.WriteFloat32(o.ImpostorLightMod)
	w.WriteFloat32(o.KillCooldown)
	w.WriteByte(o.NumCommonTasks)
	w.WriteByte(o.NumLongTasks)
	w.WriteByte(o.NumShortTasks)
	w.WriteInt32(o.NumEmergencyMeetings)
	w.WriteByte(o.NumImpostors)
	w.WriteByte(o.KillDistance)
	w.WriteInt32(o.DiscussionTime)
	w.WriteInt32(o.VotingTime)
	w.WriteBool(o.IsDefaults)
	if o.Version > 1 {
		w.WriteByte(o.EmergencyCooldown)
	}
	if o.Version > 2 {
		w.WriteBool(o.ConfirmImpostor)
		w.WriteBool(o.VisualTasks)
	}
	if o.Version > 3 {
		w.WriteBool(o.AnonymousVotes)
		w.WriteByte(o.TaskBarUpdates)
	}
}

// Bytes returns the serialized options body.
func (o *Options) Bytes() []byte {
	w := packet.NewWriter()
	o.Serialize(w)
	return w.Bytes()
}

// WriteOptions embeds o as a bytes-and-size blob.
func WriteOptions(w *packet.Writer, o *Options) {
	w.WriteBytesAndSize(o.Bytes())
}

// ReadOptions reads a bytes-and-size blob and decodes it.
func ReadOptions(r *packet.Reader) (*Options, error) {
	blob, err := r.ReadBytesAndSize()
	if err != nil {
		return nil, errors.Wrap(err, "read options blob")
	}
	return DecodeOptions(blob)
}

// DecodeOptions parses an options body of any known version.
func DecodeOptions(blob []byte) (*Options, error) {
	r := packet.NewReader(blob)
	o := &Options{}
	var err error
	read := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}
	readByte := func(dst *byte) { read(func() (e error) { *dst, e = r.ReadByte(); return }) }
	readBool := func(dst *bool) { read(func() (e error) { *dst, e = r.ReadBool(); return }) }
	readFloat := func(dst *float32) { read(func() (e error) { *dst, e = r.ReadFloat32(); return }) }
	readInt := func(dst *int32) { read(func() (e error) { *dst, e = r.ReadInt32(); return }) }

	readByte(&o.Version)
	if err == nil && (o.Version < 1 || o.Version > OptionsLatestVersion) {
		return nil, fmt.Errorf("unsupported options version %d", o.Version)
	}
	readByte(&o.MaxPlayers)
	read(func() (e error) { o.Keywords, e = r.ReadUint32(); return })
	readByte(&o.MapID)
	readFloat(&o.PlayerSpeedMod)
	readFloat(&o.CrewLightMod)
	readFloat(&o.ImpostorLightMod)
	readFloat(&o.KillCooldown)
	readByte(&o.NumCommonTasks)
	readByte(&o.NumLongTasks)
	readByte(&o.NumShortTasks)
	readInt(&o.NumEmergencyMeetings)
	readByte(&o.NumImpostors)
	readByte(&o.KillDistance)
	readInt(&o.DiscussionTime)
	readInt(&o.VotingTime)
	readBool(&o.IsDefaults)
	if o.Version > 1 {
		readByte(&o.EmergencyCooldown)
	}
	if o.Version > 2 {
		readBool(&o.ConfirmImpostor)
		readBool(&o.VisualTasks)
	}
	if o.Version > 3 {
		readBool(&o.AnonymousVotes)
		readByte(&o.TaskBarUpdates)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode options v%d", o.Version)
	}
	return o, nil
}
