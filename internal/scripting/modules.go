package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.* Lua tables into L:
//
//	engine.log.debug/info/warn/error(msg)
//	engine.random.float() -> [0, 1)
//	engine.random.int(n)  -> [1, n]
//	engine.catalog.tier(species) -> tier or nil
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "random", m.randomModule(L))
	L.SetField(engine, "catalog", m.catalogModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, fn := range levels {
		fn := fn
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) randomModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "float", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(m.src.Float64()))
		return 1
	}))
	L.SetField(mod, "int", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n < 1 {
			L.ArgError(1, "n must be >= 1")
			return 0
		}
		L.Push(lua.LNumber(m.src.Intn(n) + 1))
		return 1
	}))
	return mod
}

func (m *Manager) catalogModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "tier", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if m.SpeciesTier == nil {
			L.Push(lua.LNil)
			return 1
		}
		tier, ok := m.SpeciesTier(name)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(tier))
		return 1
	}))
	return mod
}
