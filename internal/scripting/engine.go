package scripting

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM that samples task durations and
// simulation intervals. Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	rng *rand.Rand
	log *zap.Logger
}

// NewEngine creates a Lua engine seeded with seed and loads all scripts from
// scriptsDir: core/ first, then ward/.
func NewEngine(scriptsDir string, seed int64, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, rng: rand.New(rand.NewSource(seed)), log: log}
	// deterministic replacement for math.random
	vm.SetGlobal("rand", vm.NewFunction(e.luaRand))

	for _, sub := range []string{"core", "ward"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromSource builds an engine from inline chunks, loaded in order.
func NewEngineFromSource(seed int64, log *zap.Logger, chunks ...string) (*Engine, error) {
	vm := lua.NewState()
	e := &Engine{vm: vm, rng: rand.New(rand.NewSource(seed)), log: log}
	vm.SetGlobal("rand", vm.NewFunction(e.luaRand))
	for i, src := range chunks {
		if err := vm.DoString(src); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load chunk %d: %w", i, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
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

func (e *Engine) luaRand(L *lua.LState) int {
	L.Push(lua.LNumber(e.rng.Float64()))
	return 1
}

// Sample calls the Lua sample(key, ...) function and returns its number.
func (e *Engine) Sample(key string, args ...float64) (float64, error) {
	fn := e.vm.GetGlobal("sample")
	if fn == lua.LNil {
		return 0, fmt.Errorf("lua function sample not found")
	}
	lArgs := make([]lua.LValue, 0, len(args)+1)
	lArgs = append(lArgs, lua.LString(key))
	for _, a := range args {
		lArgs = append(lArgs, lua.LNumber(a))
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		return 0, fmt.Errorf("sample %s: %w", key, err)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := result.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("sample %s: got %s, want number", key, result.Type())
	}
	return float64(n), nil
}

// Ticks samples key and truncates it to whole ticks. Script failures are
// logged and fall back to fallback.
func (e *Engine) Ticks(key string, fallback int, args ...float64) int {
	v, err := e.Sample(key, args...)
	if err != nil {
		e.log.Error("lua sample failed", zap.String("key", key), zap.Error(err))
		return fallback
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
