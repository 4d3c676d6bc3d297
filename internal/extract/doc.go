// Package extract turns a parsed patent detail page into a patent.Record.
//
// Each field is resolved by an ordered list of strategies evaluated first to
// last; the first strategy that matches wins. A field whose strategies all miss
// receives its default value and is reported in Record.Gaps.
package extract
