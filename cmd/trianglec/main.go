package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/fatih/color"
	cli "gopkg.in/urfave/cli.v1"

	"triangle"
	"triangle/report"
)

var errorColor = color.New(color.FgRed, color.Bold)

func main() {
	app := cli.NewApp()
	app.Name = "trianglec"
	app.Usage = "compile a Triangle source file to an object program"
	app.ArgsUsage = "SOURCE"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "o, output",
			Value: "obj.tam",
			Usage: "object file to write",
		},
		cli.BoolFlag{
			Name:  "folding",
			Usage: "fold constant integer expressions",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: trianglec [flags] SOURCE", 2)
	}
	src, err := ioutil.ReadFile(c.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	obj, reporter, err := triangle.Compile(src, triangle.Options{
		Folding: c.Bool("folding"),
	})
	printDiagnostics(reporter)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if obj == nil {
		return cli.NewExitError(fmt.Sprintf("%d errors", reporter.ErrorCount()), 1)
	}

	out, err := os.Create(c.String("output"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer out.Close()
	if _, err := obj.WriteTo(out); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

func printDiagnostics(reporter *report.Reporter) {
	for _, d := range reporter.Diagnostics() {
		errorColor.Fprintf(os.Stderr, "%d:%d: error: %s\n", d.Pos.Line, d.Pos.Col, d.Message)
	}
}
