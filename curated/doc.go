// Package curated gives the host-facing error boundary (image load,
// save-state format checks, RPC dispatch — spec.md §7) a way to tag an
// error with the format pattern that produced it, so code higher up the
// stack can ask "was this one of mine" without string-matching the
// rendered message.
//
// Build one with Errorf, the same way you'd call fmt.Errorf:
//
//	err := curated.Errorf("floppy: unreadable track %d", track)
//
// Is reports whether err was built from a given pattern:
//
//	if curated.Is(err, "floppy: unreadable track %d") { ... }
//
// Has walks the chain — an Errorf error wrapping another Errorf error, and
// so on — looking for the pattern anywhere in it, not just at the top:
//
//	wrapped := curated.Errorf("insert floppy: %v", err)
//	curated.Has(wrapped, "floppy: unreadable track %d") // true
//	curated.Is(wrapped, "floppy: unreadable track %d")   // false, one level down
//
// A curated error also has an Unwrap method, so the standard library's
// errors.Is and errors.As see through it to a wrapped argument that is an
// ordinary error, not just to other curated errors.
//
// Error() collapses an immediately repeated leading segment so wrapping
// twice at the same boundary doesn't repeat the same words: "load: load:
// disk full" renders as "load: disk full".
package curated
