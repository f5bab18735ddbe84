// Package tarmeta dumps the decoded member metadata of an archive, or the
// member catalog of a past session, as JSON.
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/NVIDIA/gotar/catalog"
	"github.com/NVIDIA/gotar/cmn"
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/session"
	"github.com/NVIDIA/gotar/stats"

	jsoniter "github.com/json-iterator/go"
)

var flags struct {
	in, out, config, catalog string
	verbosity                int
	sparse, stats, help      bool
}

const helpMsg = `Build:
	go install ./cmd/tarmeta

Examples:
	tarmeta -h                                       - show usage
	tarmeta -in=/tmp/a.tar                           - members of /tmp/a.tar to STDOUT
	tarmeta -in=/tmp/a.tar.zst -out=/tmp/a.json      - members of a compressed archive to /tmp/a.json
	tarmeta -in=/tmp/v1.tar,/tmp/v2.tar -config=mv.yaml - members of a multi-volume archive
	tarmeta -in=/tmp/a.tar -sparse                   - include sparse maps
	tarmeta -catalog=/tmp/a.db                       - members and volumes indexed in a catalog
`

type (
	member struct {
		*hdr.Stat
		Kind string `json:"kind"`
	}
	listing struct {
		Members []member         `json:"members"`
		Label   string           `json:"label,omitempty"`
		Stats   map[string]int64 `json:"stats,omitempty"`
	}
	catalogListing struct {
		Members []*catalog.Entry  `json:"members"`
		Volumes []*catalog.Volume `json:"volumes"`
	}
)

func main() {
	newFlag := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	newFlag.StringVar(&flags.in, "in", "", "archive, or comma-separated volumes of a multi-volume archive")
	newFlag.StringVar(&flags.out, "out", "", "output filename (optional)")
	newFlag.StringVar(&flags.config, "config", "", "JSON or YAML archive config (optional)")
	newFlag.StringVar(&flags.catalog, "catalog", "", "dump this catalog instead of reading an archive")
	newFlag.IntVar(&flags.verbosity, "v", 0, "verbosity")
	newFlag.BoolVar(&flags.sparse, "sparse", false, "include the sparse maps of sparse members")
	newFlag.BoolVar(&flags.stats, "stats", false, "include session counters")
	newFlag.BoolVar(&flags.help, "h", false, "print usage and exit")
	newFlag.Parse(os.Args[1:])

	if flags.help || len(os.Args[1:]) == 0 {
		fmt.Print(helpMsg)
		os.Exit(0)
	}
	nlog.SetTitle("tarmeta")
	nlog.SetVerbosity(flags.verbosity)

	var (
		v   any
		err error
	)
	if flags.catalog != "" {
		v, err = dumpCatalog()
	} else {
		v, err = dumpArchive()
	}
	if err == nil {
		err = output(v)
	}
	if err != nil {
		nlog.Errorln(err)
	}
	nlog.Flush()
	os.Exit(nlog.ExitStatus())
}

func dumpArchive() (*listing, error) {
	if flags.in == "" {
		return nil, fmt.Errorf("input archive (the -in option) must be defined")
	}
	config := cmn.DefaultConfig()
	if flags.config != "" {
		var err error
		if config, err = cmn.LoadConfig(flags.config); err != nil {
			return nil, err
		}
	}
	tracker := stats.New()
	s, err := session.Open(&session.Args{Config: config, Names: strings.Split(flags.in, ","), Stats: tracker})
	if err != nil {
		return nil, err
	}
	l := &listing{}
	for {
		st, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		if flags.sparse && st.IsSparse {
			m, err := s.SparseMap()
			if err != nil {
				nlog.Errorln(err)
			}
			st.SparseMap = m
		} else if !flags.sparse {
			st.SparseMap = nil
		}
		l.Members = append(l.Members, member{Stat: st, Kind: session.KindOf(st)})
	}
	l.Label = s.Label()
	if err := s.Close(); err != nil {
		return nil, err
	}
	if flags.stats {
		l.Stats = tracker.Snapshot()
	}
	return l, nil
}

func dumpCatalog() (*catalogListing, error) {
	cat, err := catalog.Open(flags.catalog)
	if err != nil {
		return nil, err
	}
	defer cat.Close()
	l := &catalogListing{}
	if l.Members, err = cat.Members(); err != nil {
		return nil, err
	}
	if l.Volumes, err = cat.Volumes(); err != nil {
		return nil, err
	}
	return l, nil
}

func output(v any) (err error) {
	f := os.Stdout
	if flags.out != "" {
		if f, err = os.Create(flags.out); err != nil {
			return err
		}
		defer f.Close()
	}
	b, err := jsoniter.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}
