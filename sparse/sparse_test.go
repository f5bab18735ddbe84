// Package sparse_test
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/sparse"
	"github.com/NVIDIA/gotar/xhdr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const fileSize = 10_000

// 100 bytes at 0, a hole, 200 bytes at 9800
func sparseContent() []byte {
	b := make([]byte, fileSize)
	for i := range 100 {
		b[i] = byte('a' + i%26)
	}
	for i := 9800; i < fileSize; i++ {
		b[i] = byte('A' + i%26)
	}
	return b
}

func writeSparse(dir string, content []byte) *os.File {
	f, err := os.Create(filepath.Join(dir, "src"))
	Expect(err).NotTo(HaveOccurred())
	Expect(f.Truncate(int64(len(content)))).To(Succeed())
	_, err = f.WriteAt(content[:100], 0)
	Expect(err).NotTo(HaveOccurred())
	_, err = f.WriteAt(content[9800:], 9800)
	Expect(err).NotTo(HaveOccurred())
	return f
}

// regions of `content` per `m`, concatenated
func regionData(d sparse.Dialect, st *hdr.Stat, content []byte) []byte {
	var buf bytes.Buffer
	for i := range st.SparseMap {
		shrank, err := d.DumpRegion(&buf, bytes.NewReader(content), st, i)
		Expect(err).NotTo(HaveOccurred())
		Expect(shrank).To(BeZero())
	}
	return buf.Bytes()
}

func manyRegions(n int) sparse.Map {
	m := make(sparse.Map, 0, n+1)
	for i := range n {
		m = append(m, hdr.Region{Offset: int64(i) * 4096, Numbytes: 512})
	}
	return append(m, hdr.Region{Offset: int64(n) * 4096})
}

func decodeBlock(h *hdr.Header) (*hdr.Block, *hdr.Stat) {
	b := &h.Block
	hdr.FinishHeader(b)
	st := &hdr.Stat{}
	Expect((&hdr.Decoder{}).DecodeHeader(b, st, false)).To(Succeed())
	return b, st
}

func concatBlocks(blks []hdr.Block) []byte {
	var b []byte
	for i := range blks {
		b = append(b, blks[i][:]...)
	}
	return b
}

var _ = Describe("Map", func() {
	It("sums the stored bytes", func() {
		m := sparse.Map{{Offset: 0, Numbytes: 512}, {Offset: 9728, Numbytes: 272}, {Offset: fileSize}}
		Expect(m.DataSize()).To(Equal(int64(784)))
		Expect(m.End()).To(Equal(int64(fileSize)))
		Expect(m.Validate("f", fileSize)).To(Succeed())
	})

	DescribeTable("rejects bad maps",
		func(m sparse.Map, size int64) {
			err := m.Validate("f", size)
			var em *sparse.ErrMalformed
			Expect(err).To(BeAssignableToTypeOf(em))
		},
		Entry("beyond the file size", sparse.Map{{Offset: 9000, Numbytes: 2000}}, int64(fileSize)),
		Entry("out of order", sparse.Map{{Offset: 512, Numbytes: 10}, {Offset: 0, Numbytes: 10}}, int64(fileSize)),
		Entry("overlapping", sparse.Map{{Offset: 0, Numbytes: 600}, {Offset: 512, Numbytes: 10}}, int64(fileSize)),
		Entry("negative", sparse.Map{{Offset: -1, Numbytes: 10}}, int64(fileSize)),
	)
})

var _ = Describe("Scan", func() {
	It("classifies 512-byte blocks and records the size", func() {
		m, err := sparse.Scan(bytes.NewReader(sparseContent()), sparse.PaxV10)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(sparse.Map{
			{Offset: 0, Numbytes: 512},
			{Offset: 9728, Numbytes: 272},
			{Offset: fileSize, Numbytes: 0},
		}))
	})

	It("maps an all-zero file to a single zero-length region", func() {
		m, err := sparse.Scan(bytes.NewReader(make([]byte, 3000)), sparse.OldGNU)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(sparse.Map{{Offset: 3000}}))
	})

	It("ends with a zero-length region when the file ends with data", func() {
		m, err := sparse.Scan(strings.NewReader("x"), sparse.Star)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(sparse.Map{{Offset: 0, Numbytes: 1}, {Offset: 1}}))
	})

	It("maps a file on disk", func() {
		content := sparseContent()
		f := writeSparse(GinkgoT().TempDir(), content)
		defer f.Close()

		m, err := sparse.ScanFile(f, fileSize, sparse.PaxV10)
		Expect(err).NotTo(HaveOccurred())
		Expect(m[len(m)-1]).To(Equal(hdr.Region{Offset: fileSize}))

		// whatever the granularity, the regions cover the data
		var out bytes.Buffer
		st := &hdr.Stat{SparseMap: m, Size: fileSize}
		data := regionData(sparse.PaxV10, st, content)
		Expect(sparse.Materialize(&out, m, fileSize, bytes.NewReader(data))).To(Succeed())
		Expect(out.Bytes()).To(Equal(content))
	})
})

var _ = Describe("Materialize", func() {
	It("writes holes as zeros on a non-seekable output", func() {
		m := sparse.Map{{Offset: 10, Numbytes: 3}, {Offset: 20}}
		var out bytes.Buffer
		Expect(sparse.Materialize(&out, m, 20, strings.NewReader("abc"))).To(Succeed())
		Expect(out.Len()).To(Equal(20))
		Expect(out.Bytes()[10:13]).To(Equal([]byte("abc")))
		Expect(out.Bytes()[13:]).To(Equal(make([]byte, 7)))
	})

	It("fails on data that ends mid-region", func() {
		m := sparse.Map{{Offset: 0, Numbytes: 100}}
		err := sparse.Materialize(&bytes.Buffer{}, m, 100, strings.NewReader("short"))
		Expect(err).To(MatchError(ContainSubstring("unexpected EOF")))
	})
})

var _ = Describe("pax 1.0", func() {
	It("round-trips the 10,000-byte file", func() {
		var (
			content = sparseContent()
			dir     = GinkgoT().TempDir()
			enc     = hdr.NewEncoder(hdr.FormatPOSIX)
			xenc    = &xhdr.Encoder{Pid: 42}
		)
		m, err := sparse.Scan(bytes.NewReader(content), sparse.PaxV10)
		Expect(err).NotTo(HaveOccurred())
		st := &hdr.Stat{Name: "data/sparsefile", Mode: hdr.SIFREG | 0o644, Size: fileSize, SparseMap: m, Mtime: time.Unix(1700000000, 0)}

		d, err := sparse.Select(hdr.FormatPOSIX, sparse.Dialect{})
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(sparse.PaxV10))
		dumped, err := d.DumpHeader(enc, xenc, st)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.ArchiveFileSize).To(Equal(int64(784)))
		Expect(dumped.Data).To(HaveLen(hdr.BlockSize))
		Expect(string(dumped.Data)).To(HavePrefix("3\n0\n512\n9728\n272\n10000\n0\n"))
		Expect(dumped.Header.Block.Name()).To(Equal("data/GNUSparseFile.42/sparsefile"))
		Expect(dumped.Header.Block.Typeflag()).To(Equal(byte(hdr.RegType)))

		// member data: in-data map, then the regions
		data := append(dumped.Data, regionData(d, st, content)...)

		b, rst := decodeBlock(dumped.Header)
		Expect(rst.Size).To(Equal(int64(hdr.BlockSize + 784)))
		Expect(xhdr.NewDecoder().Apply(rst, dumped.XHeader.Bytes())).To(Succeed())
		Expect(rst.Name).To(Equal("data/sparsefile"))
		Expect(rst.Size).To(Equal(int64(fileSize)))

		rd, ok := sparse.Detect(rst)
		Expect(ok).To(BeTrue())
		Expect(rd).To(Equal(sparse.PaxV10))
		Expect(rd.FixupHeader(&hdr.Decoder{}, b, rst)).To(Succeed())

		r := bytes.NewReader(data)
		Expect(rd.DecodeHeader(&hdr.Decoder{}, b, rst, r)).To(Succeed())
		Expect(sparse.Map(rst.SparseMap)).To(Equal(m))
		Expect(rst.ArchiveFileSize).To(Equal(int64(784)))

		f, err := os.Create(filepath.Join(dir, "out"))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		w := sparse.NewWriter(f)
		Expect(w.Seekable()).To(BeTrue())
		Expect(rd.Extract(w, rst, r)).To(Succeed())
		Expect(r.Len()).To(BeZero())

		got, err := os.ReadFile(f.Name())
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(fileSize))
		Expect(got).To(Equal(content))
	})

	It("rejects a map beyond the real size", func() {
		st := &hdr.Stat{Name: "f", Size: 100, ArchiveFileSize: 512, SparseMajor: 1}
		data := make([]byte, hdr.BlockSize)
		copy(data, "1\n50\n100\n")
		err := sparse.PaxV10.DecodeHeader(&hdr.Decoder{}, nil, st, bytes.NewReader(data))
		var em *sparse.ErrMalformed
		Expect(err).To(BeAssignableToTypeOf(em))
	})

	It("reads a map spanning blocks", func() {
		m := manyRegions(100)
		st := &hdr.Stat{Name: "f", Size: m.End(), SparseMap: m}
		dumped, err := sparse.PaxV10.DumpHeader(hdr.NewEncoder(hdr.FormatPOSIX), xhdr.NewEncoder(), st)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(dumped.Data) % hdr.BlockSize).To(BeZero())
		Expect(len(dumped.Data)).To(BeNumerically(">", hdr.BlockSize))

		rst := &hdr.Stat{Name: "f", Size: m.End(), SparseMajor: 1, ArchiveFileSize: int64(len(dumped.Data)) + m.DataSize()}
		Expect(sparse.PaxV10.DecodeHeader(&hdr.Decoder{}, nil, rst, bytes.NewReader(dumped.Data))).To(Succeed())
		Expect(sparse.Map(rst.SparseMap)).To(Equal(m))
		Expect(rst.ArchiveFileSize).To(Equal(m.DataSize()))
	})
})

var _ = DescribeTable("pax 0.x",
	func(d sparse.Dialect, expected []string) {
		m := sparse.Map{{Offset: 0, Numbytes: 512}, {Offset: 9728, Numbytes: 272}, {Offset: fileSize}}
		st := &hdr.Stat{Name: "f", Mode: hdr.SIFREG | 0o600, Size: fileSize, SparseMap: m}
		dumped, err := d.DumpHeader(hdr.NewEncoder(hdr.FormatPOSIX), &xhdr.Encoder{Pid: 1}, st)
		Expect(err).NotTo(HaveOccurred())
		Expect(dumped.Data).To(BeEmpty())

		var keys []string
		Expect(xhdr.Decode(dumped.XHeader.Bytes(), func(k, _ string) error {
			keys = append(keys, k)
			return nil
		})).To(Succeed())
		Expect(keys).To(Equal(expected))

		_, rst := decodeBlock(dumped.Header)
		Expect(rst.Size).To(Equal(int64(784)))
		Expect(xhdr.NewDecoder().Apply(rst, dumped.XHeader.Bytes())).To(Succeed())
		rd, ok := sparse.Detect(rst)
		Expect(ok).To(BeTrue())
		Expect(rd).To(Equal(d))
		Expect(rd.DecodeHeader(&hdr.Decoder{}, &dumped.Header.Block, rst, nil)).To(Succeed())
		Expect(sparse.Map(rst.SparseMap)).To(Equal(m))
		Expect(rst.Name).To(Equal("f"))
		Expect(rst.Size).To(Equal(int64(fileSize)))
		Expect(rst.ArchiveFileSize).To(Equal(int64(784)))
	},
	Entry("0.0", sparse.PaxV00, []string{
		"GNU.sparse.size", "GNU.sparse.numblocks",
		"GNU.sparse.offset", "GNU.sparse.numbytes",
		"GNU.sparse.offset", "GNU.sparse.numbytes",
		"GNU.sparse.offset", "GNU.sparse.numbytes",
	}),
	Entry("0.1", sparse.PaxV01, []string{
		"GNU.sparse.size", "GNU.sparse.numblocks", "GNU.sparse.name", "GNU.sparse.map",
	}),
)

var _ = Describe("oldgnu", func() {
	DescribeTable("round-trips maps of any length",
		func(n, extBlocks int) {
			m := manyRegions(n)
			st := &hdr.Stat{Name: "f", Mode: hdr.SIFREG | 0o644, Size: m.End(), SparseMap: m}
			d, err := sparse.Select(hdr.FormatGNU, sparse.Dialect{})
			Expect(err).NotTo(HaveOccurred())
			dumped, err := d.DumpHeader(hdr.NewEncoder(hdr.FormatGNU), nil, st)
			Expect(err).NotTo(HaveOccurred())
			Expect(dumped.Ext).To(HaveLen(extBlocks))
			Expect(dumped.Header.Block.GNUIsExtended()).To(Equal(extBlocks > 0))

			b, rst := decodeBlock(dumped.Header)
			Expect(rst.Typeflag).To(Equal(byte(hdr.Sparse)))
			Expect(rst.Size).To(Equal(m.DataSize()))

			rd, ok := sparse.Detect(rst)
			Expect(ok).To(BeTrue())
			Expect(rd).To(Equal(sparse.OldGNU))
			Expect(rd.FixupHeader(&hdr.Decoder{}, b, rst)).To(Succeed())
			Expect(rst.Size).To(Equal(m.End()))
			Expect(rst.ArchiveFileSize).To(Equal(m.DataSize()))

			r := bytes.NewReader(concatBlocks(dumped.Ext))
			Expect(rd.DecodeHeader(&hdr.Decoder{}, b, rst, r)).To(Succeed())
			Expect(sparse.Map(rst.SparseMap)).To(Equal(m))
			Expect(r.Len()).To(BeZero())
		},
		Entry("inline only", 3, 0),
		Entry("one extension block", 4, 1),
		Entry("chained extension blocks", 50, 3),
	)

	It("fails on a truncated extension chain", func() {
		m := manyRegions(10)
		st := &hdr.Stat{Name: "f", Size: m.End(), SparseMap: m}
		dumped, err := sparse.OldGNU.DumpHeader(hdr.NewEncoder(hdr.FormatOldGNU), nil, st)
		Expect(err).NotTo(HaveOccurred())
		b, rst := decodeBlock(dumped.Header)
		Expect(sparse.OldGNU.FixupHeader(&hdr.Decoder{}, b, rst)).To(Succeed())
		err = sparse.OldGNU.DecodeHeader(&hdr.Decoder{}, b, rst, bytes.NewReader(nil))
		Expect(err).To(MatchError(ContainSubstring("unexpected EOF")))
	})
})

var _ = Describe("star", func() {
	DescribeTable("round-trips",
		func(name string, n int, old bool) {
			m := manyRegions(n)
			st := &hdr.Stat{Name: name, Mode: hdr.SIFREG | 0o644, Size: m.End(), SparseMap: m, Mtime: time.Unix(1700000000, 0)}
			dumped, err := sparse.Star.DumpHeader(hdr.NewEncoder(hdr.FormatSTAR), nil, st)
			Expect(err).NotTo(HaveOccurred())

			b, rst := decodeBlock(dumped.Header)
			Expect(rst.Format).To(Equal(hdr.FormatSTAR))
			Expect(rst.Name).To(Equal(name))
			Expect(rst.Size).To(Equal(m.DataSize() + int64(len(dumped.Ext))*hdr.BlockSize))

			rd, ok := sparse.Detect(rst)
			Expect(ok).To(BeTrue())
			Expect(rd).To(Equal(sparse.Star))
			Expect(rd.FixupHeader(&hdr.Decoder{}, b, rst)).To(Succeed())
			Expect(rst.RealSizeSet).To(Equal(old))

			// extension blocks are the head of the member data
			data := append(concatBlocks(dumped.Ext), make([]byte, m.DataSize())...)
			r := bytes.NewReader(data)
			Expect(rd.DecodeHeader(&hdr.Decoder{}, b, rst, r)).To(Succeed())
			Expect(sparse.Map(rst.SparseMap)).To(Equal(m))
			Expect(rst.Size).To(Equal(m.End()))
			Expect(rst.ArchiveFileSize).To(Equal(m.DataSize()))
			Expect(int64(r.Len())).To(Equal(m.DataSize()))
		},
		Entry("old star, inline", "short", 2, true),
		Entry("old star, extended", "short", 30, true),
		Entry("prefixed name", strings.Repeat("dir/", 30)+"file", 5, false),
	)
})

var _ = Describe("Select", func() {
	It("matches the archive format", func() {
		for _, tc := range []struct {
			format hdr.Format
			pax    sparse.Dialect
			want   sparse.Dialect
		}{
			{hdr.FormatGNU, sparse.Dialect{}, sparse.OldGNU},
			{hdr.FormatOldGNU, sparse.PaxV01, sparse.OldGNU},
			{hdr.FormatSTAR, sparse.Dialect{}, sparse.Star},
			{hdr.FormatPOSIX, sparse.PaxV01, sparse.PaxV01},
		} {
			got, err := sparse.Select(tc.format, tc.pax)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(tc.want), fmt.Sprint(tc.format))
		}
		_, err := sparse.Select(hdr.FormatUSTAR, sparse.Dialect{})
		Expect(err).To(HaveOccurred())
	})

	It("parses versions", func() {
		d, err := sparse.ParseVersion("0.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.String()).To(Equal("pax-0.1"))
		_, err = sparse.ParseVersion("2.0")
		Expect(err).To(HaveOccurred())
	})
})
