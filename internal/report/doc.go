// Package report writes measurement results.
//
// The two result streams are written as CSV files in the directory layout
// produced by Layout: per-item results under CID/ and per-provider results
// under Providers/. A cleaned copy of the item stream drops providers that
// turned out to be unreachable. JSON, Markdown and XLSX renditions of a whole
// measurement are optional.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
