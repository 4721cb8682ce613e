package client

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Repl is the interactive shell. Commands name a verb, a table, and
// col=value or col:type tokens; dot-commands control the shell itself.
type Repl struct {
	client  *Client
	format  string
	history string
}

// NewRepl returns a shell speaking to client. History is kept under
// historyDir when non-empty.
func NewRepl(client *Client, format, historyDir string) *Repl {
	history := ""
	if historyDir != "" {
		history = filepath.Join(historyDir, "history")
	}
	return &Repl{client: client, format: format, history: history}
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("select"),
	readline.PcItem("insert"),
	readline.PcItem("update"),
	readline.PcItem("delete"),
	readline.PcItem("create"),
	readline.PcItem("drop"),
	readline.PcItem("alter"),
	readline.PcItem(".schema"),
	readline.PcItem(".format",
		readline.PcItem("table"),
		readline.PcItem("json"),
		readline.PcItem("csv"),
	),
	readline.PcItem(".help"),
	readline.PcItem(".quit"),
)

// Run reads and executes commands until EOF or .quit.
func (r *Repl) Run(out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "larder> ",
		HistoryFile:     r.history,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("initializing shell: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(out, "Type .help for commands, .quit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := r.dotCommand(out, line); quit {
				return nil
			}
			continue
		}
		if err := r.execute(out, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func (r *Repl) dotCommand(out io.Writer, line string) (quit bool) {
	parts := strings.Fields(line)
	switch parts[0] {
	case ".quit", ".exit":
		return true
	case ".help":
		printHelp(out)
	case ".format":
		if len(parts) != 2 {
			fmt.Fprintln(out, "usage: .format table|json|csv")
			break
		}
		switch parts[1] {
		case "table", "json", "csv":
			r.format = parts[1]
		default:
			fmt.Fprintf(out, "unknown format %q\n", parts[1])
		}
	case ".schema":
		schema, err := r.client.Schema()
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			break
		}
		printSchema(out, schema)
	default:
		fmt.Fprintf(out, "unknown command %q\n", parts[0])
	}
	return false
}

// execute parses one statement and runs it against the server.
func (r *Repl) execute(out io.Writer, line string) error {
	tokens := strings.Fields(line)
	verb := strings.ToLower(tokens[0])
	if len(tokens) < 2 {
		return fmt.Errorf("%s needs a table name", verb)
	}
	table := tokens[1]
	rest := tokens[2:]

	switch verb {
	case "select":
		columns, conditions := splitWhere(rest)
		rows, err := r.client.Select(table, pairMap(conditions))
		if err != nil {
			return err
		}
		order, err := r.columnOrder(table, columns)
		if err != nil {
			return err
		}
		return renderRows(out, order, rows, r.format)

	case "insert":
		row, err := r.typedRow(table, rest)
		if err != nil {
			return err
		}
		stored, err := r.client.Insert(table, row)
		if err != nil {
			return err
		}
		order, err := r.columnOrder(table, nil)
		if err != nil {
			return err
		}
		return renderRows(out, order, []types.Row{stored}, r.format)

	case "update":
		assignments, conditions := splitWhere(rest)
		set, err := r.typedRow(table, assignments)
		if err != nil {
			return err
		}
		count, err := r.client.Update(table, set, pairMap(conditions))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d rows updated\n", count)
		return nil

	case "delete":
		_, conditions := splitWhere(rest)
		count, err := r.client.Delete(table, pairMap(conditions))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d rows deleted\n", count)
		return nil

	case "create":
		columns, err := parseColumns(rest)
		if err != nil {
			return err
		}
		if err := r.client.Create(table, columns); err != nil {
			return err
		}
		fmt.Fprintf(out, "table %s created\n", table)
		return nil

	case "drop":
		if err := r.client.Drop(table); err != nil {
			return err
		}
		fmt.Fprintf(out, "table %s dropped\n", table)
		return nil

	case "alter":
		rename := make(map[string]string, len(rest))
		for _, token := range rest {
			old, new, ok := strings.Cut(token, ":")
			if !ok {
				return fmt.Errorf("rename %q must be old:new", token)
			}
			rename[old] = new
		}
		if err := r.client.Alter(table, rename); err != nil {
			return err
		}
		fmt.Fprintf(out, "table %s altered\n", table)
		return nil

	default:
		return fmt.Errorf("unknown command %q", verb)
	}
}

// splitWhere separates leading tokens from the conditions after a "where".
func splitWhere(tokens []string) (before, conditions []string) {
	for i, token := range tokens {
		if strings.EqualFold(token, "where") {
			return tokens[:i], tokens[i+1:]
		}
	}
	return tokens, nil
}

// pairMap turns col=value tokens into a raw string map. Malformed tokens are
// kept with an empty value so the server reports them against the schema.
func pairMap(tokens []string) map[string]string {
	m := make(map[string]string, len(tokens))
	for _, token := range tokens {
		k, v, _ := strings.Cut(token, "=")
		m[k] = v
	}
	return m
}

// typedRow parses col=value tokens into a row typed by the table's schema.
func (r *Repl) typedRow(table string, tokens []string) (types.Row, error) {
	schema, err := r.client.Schema()
	if err != nil {
		return nil, err
	}
	ts, err := schema.Table(table)
	if err != nil {
		return nil, err
	}
	row := make(types.Row, len(tokens))
	for _, token := range tokens {
		column, literal, ok := strings.Cut(token, "=")
		if !ok {
			return nil, fmt.Errorf("value %q must be col=value", token)
		}
		decl, ok := ts.Column(column)
		if !ok {
			return nil, fmt.Errorf("column %q: %w", column, types.ErrColumnNotFound)
		}
		v, err := types.ParseLiteral(decl, literal)
		if err != nil {
			return nil, err
		}
		row[column] = v
	}
	return row, nil
}

// parseColumns parses ordered col:type tokens.
func parseColumns(tokens []string) ([]types.Column, error) {
	columns := make([]types.Column, 0, len(tokens))
	for _, token := range tokens {
		name, typeName, ok := strings.Cut(token, ":")
		if !ok {
			return nil, fmt.Errorf("column %q must be name:type", token)
		}
		dt, err := types.ParseDataType(typeName)
		if err != nil {
			return nil, err
		}
		columns = append(columns, types.Column{Name: name, Type: dt})
	}
	return columns, nil
}

// columnOrder resolves the display order: the requested comma-separated
// column list when given, otherwise the table's declaration order.
func (r *Repl) columnOrder(table string, requested []string) ([]string, error) {
	if len(requested) > 0 {
		var order []string
		for _, token := range requested {
			for _, name := range strings.Split(token, ",") {
				if name != "" {
					order = append(order, name)
				}
			}
		}
		return order, nil
	}
	schema, err := r.client.Schema()
	if err != nil {
		return nil, err
	}
	ts, err := schema.Table(table)
	if err != nil {
		return nil, err
	}
	return ts.Names(), nil
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  select <table> [col,col] [where col=value ...]
  insert <table> col=value ...
  update <table> col=value ... where col=value ...
  delete <table> [where col=value ...]
  create <table> col:type ...
  drop <table>
  alter <table> old:new ...

a condition value of the form [lo,hi] selects the inclusive range.

shell:
  .schema            show the database schema
  .format <f>        set output format: table, json, csv
  .help              this text
  .quit              exit
`)
}
