package ring

import "github.com/hyp3rd/ewrap"

// ErrRingNonOperational is the sentinel surfaced when a caller tries to use
// a ring after it has been marked failed (spec.md section 7, error kind
// 4: fatal ring failure).
var ErrRingNonOperational = ewrap.New("ring: not operational")
