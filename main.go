// Command pdfchunker prints a web page to one PDF in parallel page ranges.
package main

import "github.com/JakeFAU/pdfchunker/cmd"

func main() {
	cmd.Execute()
}
