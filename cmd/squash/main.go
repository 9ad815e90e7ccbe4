// squash is a small operator tool over the squash codecs.
//
//	squash alphabet TEXT
//	squash convert [--from NAME | --from-chars S] [--to NAME | --to-chars S] TEXT
//	squash vlq N...
//	squash dump HEX
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/andreyvit/squash"
	"github.com/andreyvit/squash/baseconv"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printHelp(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "alphabet":
		return runAlphabet(args, out)
	case "convert":
		return runConvert(args, out)
	case "vlq":
		return runVLQ(args, out)
	case "dump":
		return runDump(args, out)
	case "help", "-h", "--help":
		printHelp(out)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func runAlphabet(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("alphabet takes one argument: %w", errUsage)
	}
	fmt.Fprintln(out, strconv.Quote(baseconv.Alphabet(args[0])))
	return nil
}

func runConvert(args []string, out io.Writer) error {
	var from, fromChars, to, toChars string
	var asHex bool

	flagSet := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	flagSet.StringVar(&from, "from", "", "source alphabet name ("+strings.Join(alphabetNames(), ", ")+")")
	flagSet.StringVar(&fromChars, "from-chars", "", "source alphabet given literally")
	flagSet.StringVar(&to, "to", "utf8", "target alphabet name")
	flagSet.StringVar(&toChars, "to-chars", "", "target alphabet given literally")
	flagSet.BoolVar(&asHex, "hex", false, "print the result as hex")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("convert takes one argument: %w", errUsage)
	}
	x := flagSet.Arg(0)

	in, err := pickAlphabet(from, fromChars)
	if err != nil {
		return err
	}
	if in == "" {
		in = baseconv.Alphabet(x)
	}
	target, err := pickAlphabet(to, toChars)
	if err != nil {
		return err
	}

	y, err := baseconv.Convert(x, in, target)
	if err != nil {
		return err
	}
	if asHex {
		fmt.Fprintln(out, hex.EncodeToString([]byte(y)))
	} else {
		fmt.Fprintln(out, strconv.Quote(y))
	}
	return nil
}

func pickAlphabet(name, chars string) (string, error) {
	if chars != "" {
		return chars, nil
	}
	if name == "" {
		return "", nil
	}
	a, ok := baseconv.Named[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown alphabet %q, known: %s", name, strings.Join(alphabetNames(), ", "))
	}
	return a, nil
}

func alphabetNames() []string {
	names := make([]string, 0, len(baseconv.Named))
	for name := range baseconv.Named {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func runVLQ(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("vlq takes at least one number: %w", errUsage)
	}
	codec := squash.VLQ()
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return err
		}
		data, err := squash.Marshal(codec, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t% x\n", n, data)
	}
	return nil
}

func runDump(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("dump takes one hex argument: %w", errUsage)
	}
	data, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
	if err != nil {
		return err
	}
	c := squash.CursorFrom(data)
	c.Reset(len(data))
	fmt.Fprint(out, c.Dump())
	return nil
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `squash: inspect squash encodings.

Usage:
  squash alphabet TEXT
      print the smallest alphabet of TEXT
  squash convert [--from NAME | --from-chars S] [--to NAME | --to-chars S] [--hex] TEXT
      re-encode TEXT from one alphabet into another (default: its own
      alphabet into utf8)
  squash vlq N...
      print the vlq encoding of each number
  squash dump HEX
      show bytes the way Cursor.Dump does
`)
}
