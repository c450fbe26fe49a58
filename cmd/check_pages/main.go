// Command check_pages verifies that a translated PDF keeps the pages of its original.
// It compares page counts, page order by size, and checks that the output parses.
//
// Usage:
//
//	go run ./cmd/check_pages <original.pdf> <translated.pdf>
package main

import (
	"fmt"
	"os"

	"pdf-translator/internal/pdf"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: check_pages <original.pdf> <translated.pdf>")
		fmt.Println()
		fmt.Println("This tool checks a translated PDF against its original:")
		fmt.Println("  - Page counts must match")
		fmt.Println("  - Page sizes must match page by page")
		fmt.Println("  - The translated file must be a valid PDF")
		os.Exit(1)
	}

	originalPath := os.Args[1]
	translatedPath := os.Args[2]

	fmt.Printf("Checking pages...\n")
	fmt.Printf("  Original:   %s\n", originalPath)
	fmt.Printf("  Translated: %s\n\n", translatedPath)

	result, err := pdf.CheckPages(originalPath, translatedPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(pdf.FormatPageCheckResult(result))

	if !result.IsComplete {
		os.Exit(2)
	}
}
