package store

import (
	_ "embed"

	"github.com/roach88/vstore/internal/script"
)

var (
	//go:embed lua/checked_touch.lua
	checkedTouchLua string

	//go:embed lua/checked_set.lua
	checkedSetLua string

	//go:embed lua/checked_clear.lua
	checkedClearLua string

	//go:embed lua/checked_delete.lua
	checkedDeleteLua string

	//go:embed lua/latch_decrement.lua
	latchDecrementLua string

	//go:embed lua/merge_if_distinct.lua
	mergeIfDistinctLua string
)

var (
	checkedTouchScript    = script.New("checked_touch", checkedTouchLua)
	checkedSetScript      = script.New("checked_set", checkedSetLua)
	checkedClearScript    = script.New("checked_clear", checkedClearLua)
	checkedDeleteScript   = script.New("checked_delete", checkedDeleteLua)
	latchDecrementScript  = script.New("latch_decrement", latchDecrementLua)
	mergeIfDistinctScript = script.New("merge_if_distinct", mergeIfDistinctLua)
)
