package reaction

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/udisondev/elemcore/internal/model"
)

// LuaHandler is a Handler implemented by a sandboxed Lua script.
// The script may define any of the global functions
//
//	can_handle_internal(key, actor)            -> bool
//	process_internal(key, actor)               -> result table
//	can_handle_induced(key, attacker, target)  -> bool
//	process_induced(key, attacker, target)     -> result table
//
// Actor tables carry id, elements (id -> value), biome, dimension,
// health, max_health and world_time. Result tables may set
// damage_multiplier, defense_multiplier, extra_damage, damage_reduction,
// damage_rate, defense_rate, target_effects and self_effects.
//
// One LState is shared, so calls are serialized.
type LuaHandler struct {
	name    string
	limiter *model.LogLimiter

	mu sync.Mutex
	L  *lua.LState
}

// NewLuaHandler compiles and runs src once to define the functions.
func NewLuaHandler(name, src string) (*LuaHandler, error) {
	L := newSandbox()
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading lua handler %s: %w", name, err)
	}
	return &LuaHandler{name: name, limiter: model.NewLogLimiter(30 * time.Second), L: L}, nil
}

// LoadLuaHandler reads a script file.
func LoadLuaHandler(path string) (*LuaHandler, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lua handler %s: %w", path, err)
	}
	return NewLuaHandler(path, string(src))
}

// Close releases the Lua state.
func (h *LuaHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.L.Close()
}

func (h *LuaHandler) Name() string { return "lua:" + h.name }

func (h *LuaHandler) CanHandleInternal(def model.ReactionDefinition, actor model.Subject) bool {
	return h.check(def.Key, "can_handle_internal", lua.LString(def.Key), h.subjectTable(actor))
}

func (h *LuaHandler) ProcessInternal(ctx context.Context, def model.ReactionDefinition, actor model.Subject) (Result, error) {
	return h.callResult(ctx, "process_internal", def.Key, actor)
}

func (h *LuaHandler) CanHandleInduced(def model.ReactionDefinition, attacker, target model.Subject) bool {
	return h.check(def.Key, "can_handle_induced", lua.LString(def.Key), h.subjectTable(attacker), h.subjectTable(target))
}

// check runs a can_handle function; a script error counts as "no".
func (h *LuaHandler) check(key, fn string, args ...lua.LValue) bool {
	ok, err := h.callBool(fn, args...)
	if err != nil {
		h.limiter.Warn(h.Name()+"/"+fn+"/"+key, "lua handler check failed, skipped",
			"handler", h.Name(), "function", fn, "reaction", key, "err", err)
		return false
	}
	return ok
}

func (h *LuaHandler) ProcessInduced(ctx context.Context, def model.ReactionDefinition, attacker, target model.Subject) (Result, error) {
	return h.callResult(ctx, "process_induced", def.Key, attacker, target)
}

func (h *LuaHandler) callBool(fn string, args ...lua.LValue) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ret, found, err := h.call(nil, fn, args...)
	if err != nil || !found {
		return false, err
	}
	return lua.LVAsBool(ret), nil
}

func (h *LuaHandler) callResult(ctx context.Context, fn, key string, subjects ...model.Subject) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	args := make([]lua.LValue, 0, len(subjects)+1)
	args = append(args, lua.LString(key))
	for _, s := range subjects {
		args = append(args, h.subjectTable(s))
	}

	ret, found, err := h.call(ctx, fn, args...)
	if err != nil {
		return Result{}, err
	}
	res := NewResult()
	if !found {
		return res, nil
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		if ret == lua.LNil {
			return res, nil
		}
		return Result{}, fmt.Errorf("%s returned %s, want table", fn, ret.Type())
	}
	decodeResult(tbl, &res)
	res.Triggered = append(res.Triggered, h.Name()+":"+key)
	return res, nil
}

// call invokes a global function. Must be called with mu held.
func (h *LuaHandler) call(ctx context.Context, fn string, args ...lua.LValue) (lua.LValue, bool, error) {
	f, ok := h.L.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return lua.LNil, false, nil
	}
	if ctx != nil {
		h.L.SetContext(ctx)
		defer h.L.RemoveContext()
	}
	if err := h.L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, true, fmt.Errorf("%s %s: %w", h.Name(), fn, err)
	}
	ret := h.L.Get(-1)
	h.L.Pop(1)
	return ret, true, nil
}

func (h *LuaHandler) subjectTable(s model.Subject) *lua.LTable {
	L := h.L
	t := L.NewTable()
	t.RawSetString("id", lua.LNumber(s.ID))

	elems := L.NewTable()
	for id, v := range s.Elements {
		elems.RawSetString(string(id), lua.LNumber(v))
	}
	t.RawSetString("elements", elems)

	t.RawSetString("biome", lua.LString(s.Env.Biome))
	t.RawSetString("dimension", lua.LString(s.Env.Dimension))
	t.RawSetString("health", lua.LNumber(s.Env.Health))
	t.RawSetString("max_health", lua.LNumber(s.Env.MaxHealth))
	t.RawSetString("world_time", lua.LNumber(s.Env.WorldTime))
	return t
}

func decodeResult(t *lua.LTable, res *Result) {
	num := func(key string, dst *float64) {
		if v, ok := t.RawGetString(key).(lua.LNumber); ok {
			*dst = float64(v)
		}
	}
	num("damage_multiplier", &res.DamageMultiplier)
	num("defense_multiplier", &res.DefenseMultiplier)
	num("extra_damage", &res.ExtraDamage)
	num("damage_reduction", &res.DamageReduction)
	num("damage_rate", &res.DamageRate)
	num("defense_rate", &res.DefenseRate)

	res.TargetEffects = append(res.TargetEffects, decodeEffects(t.RawGetString("target_effects"))...)
	res.SelfEffects = append(res.SelfEffects, decodeEffects(t.RawGetString("self_effects"))...)
}

func decodeEffects(v lua.LValue) []model.StatusEffect {
	list, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []model.StatusEffect
	for i := 1; i <= list.Len(); i++ {
		et, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		id := lua.LVAsString(et.RawGetString("effect"))
		if id == "" {
			continue
		}
		out = append(out, model.StatusEffect{
			EffectID:  id,
			Duration:  int32(lua.LVAsNumber(et.RawGetString("duration"))),
			Amplifier: int32(lua.LVAsNumber(et.RawGetString("amplifier"))),
			Particles: lua.LVAsBool(et.RawGetString("particles")),
		})
	}
	return out
}

// newSandbox opens only the safe libraries and strips loaders.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
	}
	return L
}
