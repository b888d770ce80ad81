// Package main hosts the watermark CLI.
//
// Running the root command watermarks every image under the input directory:
// it resolves configuration (defaults, then the config file, then flags the
// user actually passed), runs the preflight checks, takes the output-root
// lock, and hands the lazily listed files to the batch scheduler. The config
// subcommands scaffold, validate and display configuration, history reads the
// optional run journal, and the hidden worker subcommand is what the isolated
// memory pool re-executes for each worker process.
package main
