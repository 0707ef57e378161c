package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"xdao.co/fundvault/bank"
	"xdao.co/fundvault/envconf"
	"xdao.co/fundvault/fixedpoint"
	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/keys"
	"xdao.co/fundvault/ledger"
	"xdao.co/fundvault/snapshot"
	"xdao.co/fundvault/snapshot/bundle"
	"xdao.co/fundvault/state"

	_ "xdao.co/fundvault/feed/filefeed"
	_ "xdao.co/fundvault/feed/staticfeed"
	_ "xdao.co/fundvault/state/grpcstate"
	_ "xdao.co/fundvault/state/ldbstate"
	_ "xdao.co/fundvault/state/memstate"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "init":
		return cmdInit(args[1:], out, errOut)
	case "show":
		return cmdShow(args[1:], out, errOut)
	case "quote":
		return cmdQuote(args[1:], out, errOut)
	case "contribute":
		return cmdContribute(args[1:], out, errOut)
	case "withdraw":
		return cmdWithdraw(args[1:], out, errOut)
	case "funder":
		return cmdFunder(args[1:], out, errOut)
	case "snapshot":
		return cmdSnapshot(args[1:], out, errOut)
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "import":
		return cmdImport(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "demo":
		return cmdDemo(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-fundvault: contribution ledger CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-fundvault init [--out <file>] [--force]")
	fmt.Fprintln(w, "  xdao-fundvault show [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault quote --amount <units> [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault contribute --amount <units> (--caller <0x..> | --seed-hex <64hex> | --key <name> [--key-account <a>] | --key-file <path>) [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault withdraw [--cached] (--caller <0x..> | --seed-hex <64hex> | --key <name> [--key-account <a>] | --key-file <path>) [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault funder (--index <i> | --addr <0x..>) [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault snapshot [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault export [--out <file>] [--label k=v ...] [--no-index] [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault import --in <file> [--force] [--allow-unknown] [--config <file>] [--env <name>]")
	fmt.Fprintln(w, "  xdao-fundvault key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  xdao-fundvault key derive --from <name> --account <account> [--force]")
	fmt.Fprintln(w, "  xdao-fundvault key list")
	fmt.Fprintln(w, "  xdao-fundvault key export --name <name> [--account <account>]")
	fmt.Fprintln(w, "  xdao-fundvault demo [--funders <n>] [--cached]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - amounts are decimal asset units with up to 18 fraction digits (\"0.0025\")")
	fmt.Fprintln(w, "  - without --config only the built-in \"local\" environment is available")
	fmt.Fprintln(w, "  - withdraw prints settlement instructions; moving value is external to this tool")
	fmt.Fprintln(w, "  - KMS-lite stores keys under ~/.xdao/fundvault/keys (0600 seed files)")
	fmt.Fprintln(w, "  - snapshot writes canonical bytes to stdout (no trailing newline)")
	fmt.Fprintln(w, "  - export writes a deterministic TAR bundle; import refuses a dump that")
	fmt.Fprintln(w, "    disagrees with its snapshot")
}

type envFlags struct {
	config string
	env    string
}

func (e *envFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&e.config, "config", "", "Environment config file (JSON)")
	fs.StringVar(&e.env, "env", "", "Environment name (default: local)")
}

func (e *envFlags) open() (*envconf.Instance, func() error, error) {
	env, err := envconf.Resolve(e.config, e.env)
	if err != nil {
		return nil, nil, err
	}
	return env.Open()
}

func (e *envFlags) name() string {
	if e.env == "" {
		return envconf.LocalName
	}
	return e.env
}

type callerFlags struct {
	addr    string
	seedHex string
	keyName string
	account string
	keyFile string
	keyDir  string
}

func (c *callerFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "caller", "", "Caller address (0x + 40 hex)")
	fs.StringVar(&c.seedHex, "seed-hex", "", "Caller ed25519 seed as 64 hex chars")
	fs.StringVar(&c.keyName, "key", "", "Use a stored key by name (from 'xdao-fundvault key init')")
	fs.StringVar(&c.account, "key-account", "", "When using --key, use a derived account subkey")
	fs.StringVar(&c.keyFile, "key-file", "", "Path to a seed file created by 'xdao-fundvault key init/derive'")
	fs.StringVar(&c.keyDir, "key-dir", "", "Key store directory (default ~/.xdao/fundvault/keys)")
}

func (c *callerFlags) resolve() (identity.Address, error) {
	ks, err := keys.CreateKeyStore(c.keyDir)
	if err != nil {
		return identity.Address{}, err
	}
	return ks.ResolveCaller(c.addr, c.seedHex, c.keyName, c.account, c.keyFile)
}

func cmdInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var outPath string
	var force bool
	fs.StringVar(&outPath, "out", "fundvault.json", "Config skeleton path")
	fs.BoolVar(&force, "force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	skeleton := envconf.Config{
		Environments: map[string]envconf.Environment{
			"staging": {
				Owner:         identity.SeedAddress("staging-owner").String(),
				MinimumStable: "5",
				Feed: envconf.BackendConfig{
					Name:   "file",
					Config: map[string]string{"file-path": "/etc/fundvault/price.json"},
				},
				State: envconf.BackendConfig{
					Name:   "ldb",
					Config: map[string]string{"ldb-path": "/var/lib/fundvault/state"},
				},
			},
		},
	}
	if err := skeleton.Validate(); err != nil {
		fmt.Fprintf(errOut, "skeleton: %v\n", err)
		return 1
	}
	b, err := json.MarshalIndent(skeleton, "", "  ")
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	b = append(b, '\n')

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(outPath, flags, 0o644)
	if err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}

	fmt.Fprintf(out, "Wrote config skeleton: %s\n", outPath)
	fmt.Fprintf(out, "Edit owner/feed/state, then select it with --config %s --env staging\n", outPath)
	fmt.Fprintln(out, "The built-in \"local\" environment needs no config file.")
	return 0
}

func cmdShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	l := inst.Ledger
	held, err := l.HeldValue()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	n, err := l.FunderCount()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	fmt.Fprintf(out, "Environment: %s\n", env.name())
	fmt.Fprintf(out, "Owner:       %s\n", l.Owner())
	fmt.Fprintf(out, "Feed:        %s\n", l.FeedVersion())
	fmt.Fprintf(out, "Minimum:     %s stable\n", fixedpoint.FormatStable(l.MinimumStable()))
	fmt.Fprintf(out, "Held:        %s units\n", fixedpoint.FormatStable(held))
	fmt.Fprintf(out, "Funders:     %d\n", n)
	for i := uint64(0); i < n; i++ {
		addr, err := l.FunderAt(i)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		amt, err := l.ContributionOf(addr)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintf(out, "  [%d] %s  %s units\n", i, addr, fixedpoint.FormatStable(amt))
	}
	return 0
}

func cmdQuote(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	var amountText string
	fs.StringVar(&amountText, "amount", "", "Amount in asset units (decimal)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if amountText == "" {
		fmt.Fprintln(errOut, "missing --amount")
		return 2
	}
	amount, err := fixedpoint.ParseStable(amountText)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --amount: %v\n", err)
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	quoted, err := inst.Ledger.Quote(amount)
	if err != nil {
		fmt.Fprintf(errOut, "quote: %v\n", err)
		return 1
	}
	min := inst.Ledger.MinimumStable()
	fmt.Fprintf(out, "%s units = %s stable (feed %s)\n",
		fixedpoint.FormatStable(amount), fixedpoint.FormatStable(quoted), inst.Ledger.FeedVersion())
	if quoted.Cmp(min) >= 0 {
		fmt.Fprintf(out, "meets minimum %s stable: yes\n", fixedpoint.FormatStable(min))
	} else {
		fmt.Fprintf(out, "meets minimum %s stable: no\n", fixedpoint.FormatStable(min))
	}
	return 0
}

func cmdContribute(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("contribute", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	var caller callerFlags
	caller.add(fs)
	var amountText string
	fs.StringVar(&amountText, "amount", "", "Amount in asset units (decimal)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if amountText == "" {
		fmt.Fprintln(errOut, "missing --amount")
		return 2
	}
	amount, err := fixedpoint.ParseStable(amountText)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --amount: %v\n", err)
		return 2
	}
	from, err := caller.resolve()
	if err != nil {
		fmt.Fprintf(errOut, "invalid caller: %v\n", err)
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	if err := inst.Ledger.Contribute(from, amount); err != nil {
		fmt.Fprintf(errOut, "contribute: %v\n", err)
		return 1
	}
	total, err := inst.Ledger.ContributionOf(from)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	held, err := inst.Ledger.HeldValue()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "Recorded %s units from %s\n", fixedpoint.FormatStable(amount), from)
	fmt.Fprintf(out, "Caller total: %s units; ledger holds %s units\n",
		fixedpoint.FormatStable(total), fixedpoint.FormatStable(held))
	return 0
}

func cmdWithdraw(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	var caller callerFlags
	caller.add(fs)
	var cached bool
	fs.BoolVar(&cached, "cached", false, "Read the funder list length once instead of per iteration")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	from, err := caller.resolve()
	if err != nil {
		fmt.Fprintf(errOut, "invalid caller: %v\n", err)
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	// Moving value is an external concern; the collaborator prints the
	// settlement instruction and the ledger commits the clearing.
	settle := ledger.TransferorFunc(func(to identity.Address, amount *big.Int) error {
		fmt.Fprintf(out, "Settle %s units to %s\n", fixedpoint.FormatStable(amount), to)
		return nil
	})

	var receipt ledger.Receipt
	if cached {
		receipt, err = inst.Ledger.WithdrawCached(from, settle)
	} else {
		receipt, err = inst.Ledger.Withdraw(from, settle)
	}
	if err != nil {
		fmt.Fprintf(errOut, "withdraw: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Withdrew %s units; cleared %d funder records\n",
		fixedpoint.FormatStable(receipt.Total), receipt.Funders)
	return 0
}

func cmdFunder(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("funder", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	var index int64
	var addrText string
	fs.Int64Var(&index, "index", -1, "Funder list index")
	fs.StringVar(&addrText, "addr", "", "Funder address (0x + 40 hex)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (index < 0) == (addrText == "") {
		fmt.Fprintln(errOut, "provide exactly one of --index or --addr")
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	addr := identity.Address{}
	if addrText != "" {
		addr, err = identity.ParseAddress(addrText)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --addr: %v\n", err)
			return 2
		}
	} else {
		addr, err = inst.Ledger.FunderAt(uint64(index))
		if err != nil {
			fmt.Fprintf(errOut, "funder: %v\n", err)
			return 1
		}
	}

	amt, err := inst.Ledger.ContributionOf(addr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "%s  %s units\n", addr, fixedpoint.FormatStable(amt))
	return 0
}

func cmdSnapshot(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	snap, err := snapshot.Capture(inst.Ledger)
	if err != nil {
		fmt.Fprintf(errOut, "capture: %v\n", err)
		return 1
	}
	b, err := snapshot.Render(snap)
	if err != nil {
		fmt.Fprintf(errOut, "render: %v\n", err)
		return 1
	}
	id, err := snapshot.ContentCID(b)
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "State-CID: %s\n", id)
	_, _ = out.Write(b)
	return 0
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	var outPath string
	var noIndex bool
	var labels stringList
	fs.StringVar(&outPath, "out", "", "Bundle path (default: stdout)")
	fs.BoolVar(&noIndex, "no-index", false, "Omit the index.json manifest")
	fs.Var(&labels, "label", "Bundle label as k=v (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	labelMap, err := parseKVLabels(labels)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --label: %v\n", err)
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	enum, ok := inst.Store.(state.Enumerator)
	if !ok {
		fmt.Fprintln(errOut, "state backend cannot enumerate slots; export needs a local store")
		return 1
	}

	dst := out
	var f *os.File
	if outPath != "" {
		f, err = os.Create(outPath)
		if err != nil {
			fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
			return 1
		}
		dst = f
	}
	exportErr := bundle.Export(dst, inst.Ledger, enum, bundle.ExportOptions{
		Labels:       labelMap,
		IncludeIndex: !noIndex,
	})
	if f != nil {
		if cerr := f.Close(); exportErr == nil {
			exportErr = cerr
		}
	}
	if exportErr != nil {
		fmt.Fprintf(errOut, "export: %v\n", exportErr)
		return 1
	}
	if outPath != "" {
		fmt.Fprintf(errOut, "Wrote bundle: %s\n", outPath)
	}
	return 0
}

func cmdImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	env.add(fs)
	var inPath string
	var force bool
	var allowUnknown bool
	fs.StringVar(&inPath, "in", "", "Bundle path")
	fs.BoolVar(&force, "force", false, "Import into a store that already holds slots")
	fs.BoolVar(&allowUnknown, "allow-unknown", false, "Ignore unknown bundle entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if inPath == "" {
		fmt.Fprintln(errOut, "missing --in")
		return 2
	}

	inst, closeFn, err := env.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	if enum, ok := inst.Store.(state.Enumerator); ok && !force {
		live, err := enum.Slots()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		if len(live) > 0 {
			fmt.Fprintf(errOut, "store already holds %d slots; use --force to import anyway\n", len(live))
			return 1
		}
	}

	f, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintf(errOut, "open %s: %v\n", inPath, err)
		return 1
	}
	snap, err := bundle.ImportWithOptions(f, inst.Store, bundle.ImportOptions{IgnoreUnknown: allowUnknown})
	_ = f.Close()
	if err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "Imported %d funders; held %s units; owner %s\n",
		len(snap.Funders), fixedpoint.FormatStable(snap.HeldValue), snap.Owner)
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-fundvault key: minimal local key management (KMS-lite)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-fundvault key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  xdao-fundvault key derive --from <name> --account <account> [--force]")
	fmt.Fprintln(w, "  xdao-fundvault key list")
	fmt.Fprintln(w, "  xdao-fundvault key export --name <name> [--account <account>]")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var keyDir string
	var force bool
	fs.StringVar(&name, "name", "", "Key name (directory under the key store)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible demos)")
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.xdao/fundvault/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, err := keys.CreateKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = keys.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	addr, rootPath, err := ks.InitializeRootKey(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", addr)
	fmt.Fprintf(out, "Stored at: %s\n", rootPath)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var account string
	var keyDir string
	var force bool
	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&account, "account", "", "Account identifier (e.g. treasury, funder-7)")
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.xdao/fundvault/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if account == "" {
		fmt.Fprintln(errOut, "missing --account")
		return 2
	}
	if err := keys.CheckKeyName(from); err != nil {
		fmt.Fprintf(errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := keys.CheckAccount(account); err != nil {
		fmt.Fprintf(errOut, "invalid --account: %v\n", err)
		return 2
	}
	ks, err := keys.CreateKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	addr, accountPath, err := ks.DeriveAccountKey(from, account, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive account key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created account key: %s\n", addr)
	fmt.Fprintf(out, "Stored at: %s\n", accountPath)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var keyDir string
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.xdao/fundvault/keys)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := keys.CreateKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s\n", e.Identifier, e.Address)
		for _, a := range e.Accounts {
			fmt.Fprintf(out, "  - %s\n", a)
		}
	}
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var account string
	var keyDir string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&account, "account", "", "Optional account (if set, exports the derived account key)")
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.xdao/fundvault/keys)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	if account != "" {
		if err := keys.CheckAccount(account); err != nil {
			fmt.Fprintf(errOut, "invalid --account: %v\n", err)
			return 2
		}
	}
	ks, err := keys.CreateKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	addr, err := ks.ExportAddress(name, account)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, addr)
	return 0
}

// cmdDemo runs the full walkthrough in-process against the built-in local
// environment: admitted contributions, a refused one, a snapshot, a failed
// withdrawal that rolls back, and a successful withdrawal settled into an
// in-memory book.
func cmdDemo(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var funders int
	var cached bool
	fs.IntVar(&funders, "funders", 10, "Number of demo contributors")
	fs.BoolVar(&cached, "cached", false, "Withdraw with the cached-length variant")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if funders < 1 {
		fmt.Fprintln(errOut, "--funders must be at least 1")
		return 2
	}

	inst, closeFn, err := envconf.Local().Open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = closeFn() }()
	l := inst.Ledger

	unit, err := fixedpoint.ParseStable("0.0025")
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	fmt.Fprintf(out, "== contributions (minimum %s stable) ==\n", fixedpoint.FormatStable(l.MinimumStable()))
	for i := 1; i <= funders; i++ {
		who := identity.SeedAddress(fmt.Sprintf("funder-%d", i))
		amount := new(big.Int).Mul(unit, big.NewInt(int64(i)))
		if err := l.Contribute(who, amount); err != nil {
			fmt.Fprintf(errOut, "contribute %d: %v\n", i, err)
			return 1
		}
		fmt.Fprintf(out, "funder-%d %s contributed %s units\n", i, who, fixedpoint.FormatStable(amount))
	}

	tooSmall := new(big.Int).Quo(unit, big.NewInt(2))
	err = l.Contribute(identity.SeedAddress("dust"), tooSmall)
	if !ledger.IsInsufficient(err) {
		fmt.Fprintf(errOut, "expected below-minimum refusal, got: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "dust contribution of %s units refused: %v\n", fixedpoint.FormatStable(tooSmall), err)

	snap, err := snapshot.Capture(l)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	id, err := snap.CID()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	held, err := l.HeldValue()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "\n== state ==\nfunders: %d, held: %s units\nState-CID: %s\n",
		len(snap.Funders), fixedpoint.FormatStable(held), id)

	book := bank.NewBook()
	owner := l.Owner()

	// First attempt fails at the collaborator; the clearing rolls back.
	book.FailNext()
	withdraw := l.Withdraw
	if cached {
		withdraw = l.WithdrawCached
	}
	if _, err := withdraw(owner, book); !ledger.IsTransferFailed(err) {
		fmt.Fprintf(errOut, "expected transfer failure, got: %v\n", err)
		return 1
	}
	heldAfterFail, err := l.HeldValue()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "\n== withdrawal ==\nfirst attempt refused by the bank; ledger still holds %s units\n",
		fixedpoint.FormatStable(heldAfterFail))

	receipt, err := withdraw(owner, book)
	if err != nil {
		fmt.Fprintf(errOut, "withdraw: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "second attempt cleared %d funder records; settled %s units\n",
		receipt.Funders, fixedpoint.FormatStable(receipt.Total))
	fmt.Fprintf(out, "bank balance of %s: %s units\n", owner, fixedpoint.FormatStable(book.Balance(owner)))

	heldFinal, err := l.HeldValue()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	nFinal, err := l.FunderCount()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "ledger drained: held %s units, %d funders\n", fixedpoint.FormatStable(heldFinal), nFinal)
	return 0
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func parseKVLabels(items []string) (map[string]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	labels := make(map[string]string, len(items))
	for _, it := range items {
		k, v, ok := strings.Cut(it, "=")
		if !ok {
			return nil, fmt.Errorf("expected k=v, got %q", it)
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New("empty label key")
		}
		if _, exists := labels[k]; exists {
			return nil, fmt.Errorf("duplicate label %q", k)
		}
		labels[k] = v
	}
	return labels, nil
}
