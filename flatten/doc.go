// Package flatten decides, page by page, which content is preserved as
// vector output and which is rasterized, and partitions raster output into
// tiles bounded by a pixel budget.
//
// # Modes
//
//   - ModeOff passes every run through unchanged. Nothing is rasterized.
//   - ModeSimple renders one background raster and overlays all text.
//   - ModeFast preserves text runs that are not too occluded or clipped.
//   - ModeHighQuality preserves text and vector paths on the same terms.
//
// In the fast and high-quality modes each run's occluded fraction (the part
// of its bounds hidden by later opaque content or cut away by its clip) is
// compared against the cutoff of the policy Threshold. Runs at or above the
// cutoff join the raster background; images and shadings are always
// rasterized.
//
// # Stacking
//
// A Result is an ordered list of layers that reproduces the page's painting
// order. Rasterized runs share the lowest raster layer unless they overlap
// a preserved run painted before them, in which case they are lifted into a
// raster layer above that run.
//
// # Tiling
//
// Every raster layer covers the whole page and is cut into horizontal
// full-width tiles (see Partition). A run is never split: it belongs to
// the tile holding the top row of its bounds, and that tile grows past the
// budget if needed to contain it.
package flatten
