// Package overlay prepares the watermark image once per run.
//
// A Descriptor holds the decoded overlay with its alpha channel already scaled
// by the configured opacity, plus the height of the transparent band below its
// visible content. Jobs call ScaleFor to get their own resized copy; the
// descriptor itself is never written after construction, so it is shared
// across workers without locking.
package overlay
