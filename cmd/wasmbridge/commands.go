package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/guest"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "instantiate the guest and exercise the env contract",
		ArgsUsage: "GUEST",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "left", Value: "Hello ", Usage: "left `text` for concat"},
			&cli.StringFlag{Name: "right", Value: "World", Usage: "right `text` for concat"},
			&cli.IntFlag{Name: "n", Value: 1, Usage: "`value` passed to increment"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close(c.Context)

	if err := guest.Validate(s.mod); err != nil {
		return err
	}

	inst, err := s.mod.Instantiate(c.Context)
	if err != nil {
		return err
	}
	defer inst.Close(c.Context)

	client, err := guest.NewClient(inst)
	if err != nil {
		return err
	}

	if err := client.SayHello(c.Context); err != nil {
		return fmt.Errorf("say hello: %w", err)
	}

	n, err := client.Increment(c.Context, int32(c.Int("n")))
	if err != nil {
		return fmt.Errorf("increment: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Got %d back from the client\n", n)

	text, err := client.Concat(c.Context, c.String("left"), c.String("right"))
	if err != nil {
		return fmt.Errorf("concat: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Concat got %s\n", text)
	return nil
}

func exportsCommand() *cli.Command {
	return &cli.Command{
		Name:      "exports",
		Usage:     "list the guest's imports, exports and memories",
		ArgsUsage: "GUEST",
		Action:    exports,
	}
}

func exports(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close(c.Context)

	w := c.App.Writer
	fmt.Fprintf(w, "Guest: %s\n", s.guest)

	fmt.Fprintf(w, "\nImports:\n")
	for _, imp := range s.mod.Imports() {
		fmt.Fprintf(w, "  %s.%s %s\n", imp.Namespace, imp.Name, imp.Signature)
	}
	fmt.Fprintf(w, "\nExports:\n")
	for _, exp := range s.mod.Exports() {
		fmt.Fprintf(w, "  %s %s\n", exp.Name, exp.Signature)
	}
	fmt.Fprintf(w, "\nMemories:\n")
	for _, name := range s.mod.Memories() {
		fmt.Fprintf(w, "  %s\n", name)
	}

	if err := guest.Validate(s.mod); err != nil {
		fmt.Fprintf(w, "\n%v\n", err)
	} else {
		fmt.Fprintf(w, "\nSatisfies the env contract.\n")
	}
	return nil
}

func callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "call one export with numeric arguments",
		ArgsUsage: "GUEST EXPORT [ARGS...]",
		Action:    call,
	}
}

func call(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.InvalidInput(errors.PhaseLoad, "usage: call GUEST EXPORT [ARGS...]")
	}
	name := c.Args().Get(1)

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close(c.Context)

	info, ok := s.mod.Export(name)
	if !ok {
		return errors.ExportNotFound(errors.PhaseCall, name)
	}
	args, err := parseArgs(name, info.Signature, c.Args().Slice()[2:])
	if err != nil {
		return err
	}

	inst, err := s.mod.Instantiate(c.Context)
	if err != nil {
		return err
	}
	defer inst.Close(c.Context)

	res, err := inst.Invoke(c.Context, name, args...)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, formatVals(res))
	return nil
}

// parseArgs converts text arguments by the parameter kinds of sig.
func parseArgs(name string, sig binding.Signature, text []string) ([]binding.Val, error) {
	if len(text) != len(sig.Params) {
		return nil, errors.SignatureMismatch(errors.PhaseCall, name,
			fmt.Sprintf("%d argument(s)", len(sig.Params)), fmt.Sprintf("%d", len(text)))
	}
	args := make([]binding.Val, len(text))
	for i, t := range text {
		v, err := binding.ParseVal(sig.Params[i], t)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err,
				fmt.Sprintf("argument %d of %s", i, name))
		}
		args[i] = v
	}
	return args, nil
}

func formatVals(vals []binding.Val) string {
	if len(vals) == 0 {
		return "()"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}
