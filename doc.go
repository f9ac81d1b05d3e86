// Package convert converts paginated documents into SVG, XOD, HTML, EPUB
// and raster image stacks.
//
// # Overview
//
// A conversion trades fidelity for size and speed through a flattening
// policy (package flatten). Per page, content that is hidden or clipped
// beyond the policy's threshold is rasterized into a tiled background;
// the rest stays vector. Output writers live under backend/ and register
// themselves by format name.
//
// # Quick Start
//
//	c := convert.New()
//	defer c.Close()
//
//	doc, err := c.Open(ctx, "report.pdf")
//	if err != nil {
//	    return err
//	}
//	opts := convert.DefaultSVGOptions()
//	opts.Flatten.DPI = 200
//	art, err := c.ConvertTo(ctx, doc, opts, convert.ToFile("report.svg"))
//
// # Streaming
//
// ConvertToStreaming returns a Monitor. Each call to Next runs one unit of
// work; Progress never decreases. For stream targets the output can be read
// through Filter as soon as Ready reports true, while later pages are
// still converting:
//
//	m, err := c.ConvertToStreaming(ctx, doc, convert.DefaultHTMLOptions(), convert.ToStream())
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//	for !m.Ready() && m.Next() {
//	}
//	r, err := m.Filter()
//	if err != nil {
//	    return err
//	}
//	_, err = io.Copy(w, r)
//
// # Artifacts
//
// Output is staged next to its final path and renamed into place when the
// conversion finishes, so a partially written artifact is never visible.
// Cancelling or failing a conversion removes the staged output.
//
// # Memory
//
// Raster tiles render on a worker pool shared by every job of a Converter.
// A page is admitted only while the pixels of all rendered but unwritten
// tiles stay below the resident ceiling (see WithResidentPixels).
package convert

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = ""
)
