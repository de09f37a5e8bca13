// Command kglite is a command-line harness for bulk-loading CSV data into
// an in-memory KGLite graph from a YAML manifest and running a single
// Cypher-subset query against it.
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kkollsga/kglite/pkg/cypher"
	"github.com/kkollsga/kglite/pkg/kglite"
	"github.com/kkollsga/kglite/pkg/kglog"
	"github.com/kkollsga/kglite/pkg/store"
	"github.com/kkollsga/kglite/pkg/value"
)

var logger = kglog.Default()

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kglite",
		Short: "Bulk-load and query an in-memory KGLite property graph",
	}
	root.AddCommand(newVersionCmd(), newQueryCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kglite version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// manifest describes a graph load plan read from a YAML file: a list of
// node CSV sources and a list of relationship CSV sources, each naming the
// columns that map to KGLite's bulk-load contract (spec §6).
type manifest struct {
	Nodes []struct {
		Label string `yaml:"label"`
		CSV   string `yaml:"csv"`
		ID    string `yaml:"id_col"`
		Title string `yaml:"title_col"`
	} `yaml:"nodes"`
	Connections []struct {
		Type     string   `yaml:"type"`
		CSV      string   `yaml:"csv"`
		SrcLabel string   `yaml:"src_label"`
		SrcCol   string   `yaml:"src_col"`
		TgtLabel string   `yaml:"tgt_label"`
		TgtCol   string   `yaml:"tgt_col"`
		Columns  []string `yaml:"columns"`
	} `yaml:"connections"`
}

func newQueryCmd() *cobra.Command {
	var manifestPath, queryText string
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Load a graph from a manifest and run one Cypher query against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := loadManifest(manifestPath)
			if err != nil {
				logger.Error("loading manifest %s: %v", manifestPath, err)
				return fmt.Errorf("loading manifest: %w", err)
			}
			logger.Info("loaded graph with %d nodes from %s", graph.NumNodes(), manifestPath)

			result, err := graph.CypherTimeout(queryText, nil, time.Duration(timeoutSec)*time.Second)
			if err != nil {
				logger.Warn("query failed: %v", err)
				return fmt.Errorf("running query: %w", err)
			}
			logger.Info("query returned %d rows", len(result.Rows))
			printResult(cmd, graph, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to a YAML load manifest")
	cmd.Flags().StringVar(&queryText, "query", "", "Cypher query to run")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 30, "query timeout, in seconds")
	cmd.MarkFlagRequired("manifest")
	cmd.MarkFlagRequired("query")
	return cmd
}

func loadManifest(path string) (*kglite.Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	graph := kglite.OpenGraph()
	for _, n := range m.Nodes {
		batch, err := readCSVBatch(n.CSV)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", n.CSV, err)
		}
		if err := graph.AddNodes(batch, n.Label, n.ID, n.Title); err != nil {
			return nil, err
		}
		logger.Debug("loaded %d %s nodes from %s", batch.Rows, n.Label, n.CSV)
	}
	for _, c := range m.Connections {
		batch, err := readCSVBatch(c.CSV)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", c.CSV, err)
		}
		if err := graph.AddConnections(batch, c.Type, c.SrcLabel, c.SrcCol, c.TgtLabel, c.TgtCol, c.Columns); err != nil {
			return nil, err
		}
		logger.Debug("loaded %d %s relationships from %s", batch.Rows, c.Type, c.CSV)
	}
	return graph, nil
}

// readCSVBatch reads path into a store.Batch, sniffing each column's type
// from whether every one of its cells parses as an integer or float,
// falling back to text.
func readCSVBatch(path string) (*store.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	raw := make(map[string][]string, len(header))
	rows := 0
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		for i, col := range header {
			raw[col] = append(raw[col], rec[i])
		}
		rows++
	}

	batch := &store.Batch{Columns: header, ColumnVal: make(map[string][]value.Value, len(header)), Rows: rows}
	for _, col := range header {
		batch.ColumnVal[col] = sniffColumn(raw[col])
	}
	return batch, nil
}

func sniffColumn(cells []string) []value.Value {
	allInt, allFloat := true, true
	for _, c := range cells {
		if _, err := strconv.ParseInt(c, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			allFloat = false
		}
	}

	out := make([]value.Value, len(cells))
	for i, c := range cells {
		switch {
		case allInt:
			n, _ := strconv.ParseInt(c, 10, 64)
			out[i] = value.NewInt(n)
		case allFloat:
			f, _ := strconv.ParseFloat(c, 64)
			out[i] = value.NewFloat(f)
		default:
			out[i] = value.NewText(c)
		}
	}
	return out
}

func printResult(cmd *cobra.Command, graph *kglite.Graph, result *cypher.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v.IsNull() {
				cells[i] = "null"
			} else {
				cells[i] = value.ToText(v).Text()
			}
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(out, "%s rows, %s nodes loaded\n",
		humanize.Comma(int64(len(result.Rows))), humanize.Comma(int64(graph.NumNodes())))
}
