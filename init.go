package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// The usage section is kept between these markers so init can rewrite it
// in place.
const (
	sentinelStart = "<!-- railsrel:start -->"
	sentinelEnd   = "<!-- railsrel:end -->"
)

// usageExamples are the invocations shown in the usage section. They must
// run against an app with User, Comment and Billing::Invoice models.
var usageExamples = []struct {
	cmd, note string
}{
	{"railsrel User Comment", "paths from User to Comment"},
	{"railsrel -C /path/to/app User Comment", "explicit application root"},
	{"railsrel -d 3 billing/invoice Comment", "at most 3 associations per path"},
	{"railsrel models", "every model and association"},
	{"railsrel models -n 20", "top 20 models by centrality"},
	{"railsrel models -m invoice", "one model and its neighbors"},
}

// runInit implements `railsrel init`, which writes or refreshes the railsrel
// usage section of a CLAUDE.md file.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("railsrel init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "print the result instead of writing it")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: railsrel init [flags] [path-to-CLAUDE.md]

Add a railsrel usage section to CLAUDE.md (default ./CLAUDE.md), or refresh
the one a previous run wrote. The rest of the file is left alone.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	section := usageSection()
	if dryRun && fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := "CLAUDE.md"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated := spliceSection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}
	if updated == string(existing) {
		_, _ = fmt.Fprintf(stderr, "%s: railsrel section already up to date\n", path)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote railsrel section to %s\n", path)
	return nil
}

func usageSection() string {
	var b strings.Builder
	b.WriteString(sentinelStart + "\n")
	b.WriteString(`## railsrel: Model Relationships

Run ` + "`railsrel`" + ` when you need to know how two ActiveRecord models are
connected. It reads ` + "`app/models`" + ` statically, without booting Rails or
touching the database, and prints every association path between them.
Check ` + "`railsrel --version`" + ` first and skip it if the binary is missing.

` + "```bash\n")
	for _, ex := range usageExamples {
		fmt.Fprintf(&b, "%-44s # %s\n", ex.cmd, ex.note)
	}
	b.WriteString("```" + `

Each output line is one path: ` + "`Post belongs_to:user -> User`" + ` means
` + "`post.user`" + ` reaches a User, so the association names chain into joins
and includes. Subclasses inherit their parent's associations.

Polymorphic associations are never followed. When no path is found, run
` + "`railsrel models -m <model>`" + ` and look for associations with an empty target.

` + "`.railsrel.yml`" + ` in the application root sets ` + "`models_dir`" + `, ` + "`base_classes`" + `,
` + "`exclude`" + ` patterns and the default search bounds. Pass
` + "`--cache <file>`" + ` to ` + "`railsrel models`" + ` to skip re-parsing until a model or
the config changes. See ` + "`railsrel --help`" + ` for every flag.
`)
	b.WriteString(sentinelEnd)
	return b.String()
}

// spliceSection replaces the sentinel block in content with section, or
// appends section after a blank line when content has none.
func spliceSection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)
	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
