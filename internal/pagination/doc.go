// Package pagination prints a document of unknown length in fixed-size page
// ranges across a pool of concurrent workers.
//
// Workers share a Cursor that hands out disjoint ranges. Nobody knows the page
// count up front: the end of the document is discovered by whichever worker
// first sees one of three signals (the renderer rejects the range, the artifact
// is empty, or the artifact holds fewer pages than requested) and proposes it
// as the boundary. Once every worker has returned, the collector orders the
// chunk artifacts, checks that they cover the document without gaps and hands
// them to the Merger.
package pagination
