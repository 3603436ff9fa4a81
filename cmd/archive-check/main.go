// Command archive-check validates a saved model archive: the manifest must
// parse, every recorded reserved key must be known, and a minified archive
// must carry its cached posterior state. With -deep the dataset payload is
// decoded and cross-checked against the manifest.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"cellcore/internal/archive"
	"cellcore/internal/blob"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("archive-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		root   string
		prefix string
		deep   bool
	)
	fs.StringVar(&root, "root", "./artifacts", "artifact store root directory")
	fs.StringVar(&prefix, "prefix", "", "archive key prefix (required)")
	fs.BoolVar(&deep, "deep", false, "also decode the dataset and cross-check reserved keys")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if prefix == "" {
		fmt.Fprintln(stderr, "archive-check: -prefix is required")
		return 2
	}
	if err := run(context.Background(), root, prefix, deep, stdout); err != nil {
		fmt.Fprintf(stderr, "Archive validation failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Archive validation passed.")
	return 0
}

func run(ctx context.Context, root, prefix string, deep bool, stdout io.Writer) error {
	store, err := blob.NewFilesystem(root)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	manifest, err := archive.ReadManifest(ctx, store, prefix)
	if err != nil {
		return err
	}
	if err := archive.CheckManifest(manifest); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "class=%s trained=%v minification=%q reserved_keys=%d\n",
		manifest.ModelClass, manifest.Trained, manifest.Minification, len(manifest.ReservedKeys))
	if !deep {
		return nil
	}
	if err := archive.CheckDataset(ctx, store, prefix, manifest); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "dataset cross-check passed")
	return nil
}
