package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/innernet/server/internal/game"
	"github.com/innernet/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Hook function names looked up in the global table. Each is optional.
const (
	hookSceneChange = "on_scene_change"
	hookReady       = "on_ready"
	hookRpc         = "on_rpc"
	hookOptions     = "on_options"
)

// Engine wraps a single gopher-lua VM running server hooks. Games call into
// it from their own goroutines, so every VM access holds mu.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// NewEngineFromString creates an engine running a single chunk of source.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// log(level, msg) from scripts.
func (e *Engine) luaLog(L *lua.LState) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)
	switch level {
	case "debug":
		e.log.Debug(msg, zap.String("source", "lua"))
	case "warn":
		e.log.Warn(msg, zap.String("source", "lua"))
	case "error":
		e.log.Error(msg, zap.String("source", "lua"))
	default:
		e.log.Info(msg, zap.String("source", "lua"))
	}
	return 0
}

// OnSceneChange implements game.SceneSink.
func (e *Engine) OnSceneChange(gameCode, clientID int32, scene string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	t.RawSetString("game", lua.LNumber(gameCode))
	t.RawSetString("client", lua.LNumber(clientID))
	t.RawSetString("scene", lua.LString(scene))
	e.call(hookSceneChange, t)
}

// OnReady implements game.ReadySink.
func (e *Engine) OnReady(gameCode, clientID int32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	t.RawSetString("game", lua.LNumber(gameCode))
	t.RawSetString("client", lua.LNumber(clientID))
	e.call(hookReady, t)
}

// OnRpc implements game.RpcSink. The payload is passed as a Lua string.
func (e *Engine) OnRpc(gameCode int32, obj *world.NetObject, callID byte, payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	t.RawSetString("game", lua.LNumber(gameCode))
	t.RawSetString("net_id", lua.LNumber(obj.NetID))
	t.RawSetString("owner", lua.LNumber(obj.OwnerID))
	t.RawSetString("kind", lua.LString(obj.Kind.String()))
	t.RawSetString("call_id", lua.LNumber(callID))
	t.RawSetString("payload", lua.LString(payload))
	e.call(hookRpc, t)
}

// OnOptionsChanged implements game.OptionsSink.
func (e *Engine) OnOptionsChanged(gameCode int32, opts *game.Options) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	t.RawSetString("game", lua.LNumber(gameCode))
	t.RawSetString("max_players", lua.LNumber(opts.MaxPlayers))
	t.RawSetString("map_id", lua.LNumber(opts.MapID))
	t.RawSetString("impostors", lua.LNumber(opts.NumImpostors))
	t.RawSetString("kill_cooldown", lua.LNumber(opts.KillCooldown))
	e.call(hookOptions, t)
}

// call invokes a global hook with one table argument. Missing hooks are
// skipped and script errors are logged. Caller holds mu.
func (e *Engine) call(name string, arg *lua.LTable) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, arg); err != nil {
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
	}
}

// HasHook reports whether the loaded scripts define the named global function.
func (e *Engine) HasHook(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// Global returns a global value converted to a Go string, for inspection.
func (e *Engine) Global(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lua.LVAsString(e.vm.GetGlobal(name))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
