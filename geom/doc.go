// Package geom provides the 2D geometry shared by the conversion engine:
// points, axis-aligned rectangles, paths and cubic Bezier segments.
//
// # Coordinate System
//
// Page geometry is expressed in page units (1/72 inch), with the origin at the
// top-left corner of the page:
//   - X increases right
//   - Y increases down
//
// Pixel-space values are derived from page units by scaling with DPI/72.
package geom
