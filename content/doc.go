// Package content is the source document model consumed by the conversion
// engine.
//
// A Document is an ordered, read-only sequence of pages. Each Page carries
// its content as a stacking-ordered list of runs: text, vector paths,
// images, shadings and annotations. Runs earlier in the list are painted
// first. The engine never mutates a Document; append targets receive new
// pages through AppendTarget.
//
// Page units are PDF points (1/72 inch) with the origin at the top-left
// corner and y growing downwards.
package content
