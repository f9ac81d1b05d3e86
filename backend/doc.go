// Package backend defines the output-format writers driven by a conversion
// job, and the registry they are looked up in.
//
// Writers register themselves from init, following the database/sql driver
// pattern:
//
//	func init() {
//	    backend.Register("svg", func(opts any) (backend.Writer, error) {
//	        return New(opts)
//	    })
//	}
//
// A program links the writers it needs with blank imports:
//
//	import _ "github.com/gogpu/convert/backend/svg"
//
// # Writer contract
//
// A job calls Begin once, WritePage once per converted page in page order,
// and End once after the last page. Pages that failed to convert are not
// written. After an error from any call the job stops and discards the
// output; the writer is not called again.
//
// Writers hold at most the current page's tiles. Everything written to the
// Output before WritePage returns may be handed to a stream consumer
// immediately.
package backend
