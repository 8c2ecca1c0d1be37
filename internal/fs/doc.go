// Package fs abstracts the file operations behind atomic blob writes so
// tests can inject I/O faults.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("index.vfst", fs.Fault{FailAfterBytes: 1024})
package fs
