package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"econgrid.ai/internal/persistence/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshot <path>",
		Short: "Decode a snapshot file and print its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.ReadSnapshot(args[0])
			if err != nil {
				return printError(cmd, "Cannot read snapshot", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printHeader(cmd, "Snapshot v%d world=%s tick=%d", snap.Header.Version, snap.Header.WorldID, snap.Header.Tick)
			fmt.Fprintf(out, "seed=%d grid=%dx%d goods=%s numeraire=%s\n",
				snap.Seed, snap.Width, snap.Height, strings.Join(snap.Goods, ","), snap.Numeraire)
			fmt.Fprintf(out, "agents=%d markets=%d cells=%d\n", len(snap.Agents), len(snap.Markets), len(snap.Cells))
			if fi, err := os.Stat(args[0]); err == nil {
				fmt.Fprintf(out, "size=%s\n", humanize.Bytes(uint64(fi.Size())))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "dump the decoded snapshot as JSON")
	return cmd
}

func newStateCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Fetch the live world state from a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/v1/state"
			cl := &http.Client{Timeout: 5 * time.Second}
			resp, err := cl.Get(u)
			if err != nil {
				return printError(cmd, "Request failed", err)
			}
			defer resp.Body.Close()
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return printError(cmd, "Request failed", err)
			}
			if resp.StatusCode/100 != 2 {
				return printError(cmd, "Request failed", fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b))))
			}
			return printState(cmd, b)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")
	return cmd
}

type stateView struct {
	Tick   uint64 `json:"tick"`
	Mode   string `json:"mode"`
	Agents []struct {
		Partner uint32 `json:"partner"`
		Market  uint32 `json:"market"`
	} `json:"agents"`
	Markets []struct {
		ID           uint32            `json:"id"`
		Participants []uint32          `json:"participants"`
		Prices       map[string]string `json:"prices"`
	} `json:"markets"`
}

func printState(cmd *cobra.Command, body []byte) error {
	var st stateView
	if err := json.Unmarshal(body, &st); err != nil {
		return printError(cmd, "Unexpected response", err)
	}
	out := cmd.OutOrStdout()
	paired, inMarket := 0, 0
	for _, a := range st.Agents {
		if a.Partner != 0 {
			paired++
		}
		if a.Market != 0 {
			inMarket++
		}
	}
	printHeader(cmd, "tick=%d mode=%s", st.Tick, st.Mode)
	fmt.Fprintf(out, "agents=%d paired=%d in_market=%d\n", len(st.Agents), paired, inMarket)
	for _, m := range st.Markets {
		goods := make([]string, 0, len(m.Prices))
		for g := range m.Prices {
			goods = append(goods, g)
		}
		sort.Strings(goods)
		parts := make([]string, 0, len(goods))
		for _, g := range goods {
			parts = append(parts, g+"="+m.Prices[g])
		}
		good.Fprintf(out, "market %d", m.ID)
		fmt.Fprintf(out, " participants=%d prices=[%s]\n", len(m.Participants), strings.Join(parts, " "))
	}
	return nil
}
