package clock

import "time"

// NowFunc supplies timestamps for sessions, frames and stored memories.
// Tests override it for determinism.
var NowFunc = time.Now

func Now() time.Time { return NowFunc() }
