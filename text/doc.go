// Package text measures text runs whose source gives a baseline origin but
// no extent. Shaping uses go-text/typesetting with the embedded Go Regular
// font unless a caller supplies its own Measurer.
package text
