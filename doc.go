// Package npy reads and writes arrays in the NPY binary format and in NPZ
// archives (zip containers holding one NPY entry per variable name).
//
// An NPY file is a fixed 10-byte preamble, a padded ASCII dictionary
// describing dtype, memory order and shape, and a raw little-endian payload.
// The package persists and reloads typed, possibly multi-field ("structured"),
// multi-dimensional arrays without depending on any numeric runtime: loaded
// data is exposed as typed, strided or raw byte views only.
//
// The package is organised into several files for clarity:
//
//	dtype.go   – type codes, byte orders, field layout table
//	shape.go   – shapes, memory order, growth dimension
//	header.go  – NPY header generation & parsing
//	buffer.go  – in-memory and memory-mapped payload buffers
//	array.go   – the Array value object and its typed views
//	save.go    – plain-file save & append engine
//	load.go    – plain-file load (in-memory or mapped)
//	stream.go  – pull-based element stream feeding archive entries
//	npz.go     – NPZ archive reading & writing
//	options.go – archive write options & defaults
//	errors.go  – error taxonomy
//	logger.go  – package logger
package npy
