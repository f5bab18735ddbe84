// Package xhdr_test
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package xhdr_test

import (
	"errors"
	"strings"
	"time"

	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/xhdr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func records(kv ...string) []byte {
	var buf []byte
	for i := 0; i < len(kv); i += 2 {
		buf = xhdr.AppendRecord(buf, kv[i], kv[i+1])
	}
	return buf
}

var _ = Describe("Decode", func() {
	DescribeTable("malformed records",
		func(buf, reason string) {
			err := xhdr.Decode([]byte(buf), func(string, string) error { return nil })
			var em *xhdr.ErrMalformed
			Expect(errors.As(err, &em)).To(BeTrue())
			Expect(em.Reason).To(ContainSubstring(reason))
		},
		Entry("missing length", "path=x\n", "missing length"),
		Entry("zero length", "0 path=x\n", "zero length"),
		Entry("beyond buffer", "99 path=x\n", "out of range"),
		Entry("missing blank", "9path=ab\n", "missing blank"),
		Entry("missing equal sign", "9 pathab\n", "missing equal sign"),
		Entry("missing newline", "9 path=ab ", "missing newline"),
	)

	It("reports the offset of the bad record", func() {
		buf := append(records("uid", "1"), "5 a=b\n"...)
		err := xhdr.Decode(buf, func(string, string) error { return nil })
		var em *xhdr.ErrMalformed
		Expect(errors.As(err, &em)).To(BeTrue())
		Expect(em.Offset).To(Equal(len(records("uid", "1"))))
	})
})

var _ = Describe("Apply", func() {
	var (
		d  *xhdr.Decoder
		st *hdr.Stat
	)
	BeforeEach(func() {
		d = xhdr.NewDecoder()
		st = &hdr.Stat{Name: "short", Size: 10, Uname: "root"}
	})

	It("decodes the standard keywords", func() {
		buf := records(
			"path", "a/very/long/name",
			"linkpath", "target",
			"uid", "3000000",
			"gid", "42",
			"size", "99999999999999",
			"mtime", "1700000000.5",
			"atime", "-0.25",
			"uname", "someone",
			"gname", "staff",
			"devmajor", "8",
			"devminor", "1",
			"comment", "ignored",
		)
		Expect(d.Apply(st, buf)).To(Succeed())
		Expect(st.Name).To(Equal("a/very/long/name"))
		Expect(st.LinkName).To(Equal("target"))
		Expect(st.UID).To(Equal(int64(3000000)))
		Expect(st.GID).To(Equal(int64(42)))
		Expect(st.Size).To(Equal(int64(99999999999999)))
		Expect(st.ArchiveFileSize).To(Equal(st.Size))
		Expect(st.Mtime.Equal(time.Unix(1700000000, 500_000_000))).To(BeTrue())
		Expect(st.Atime.Equal(time.Unix(0, -250_000_000))).To(BeTrue())
		Expect(st.Uname).To(Equal("someone"))
		Expect(st.Gname).To(Equal("staff"))
		Expect(st.Devmajor).To(Equal(int64(8)))
		Expect(st.Devminor).To(Equal(int64(1)))
	})

	It("layers global, member, and overrides in that order", func() {
		Expect(d.DecodeGlobal(records("uname", "global", "gname", "global"))).To(Succeed())
		Expect(d.Apply(st, records("uname", "member"))).To(Succeed())
		Expect(st.Uname).To(Equal("member"))
		Expect(st.Gname).To(Equal("global"))

		Expect(d.SetOverrides([]xhdr.Record{{Keyword: "uname", Value: "override"}})).To(Succeed())
		st2 := &hdr.Stat{}
		Expect(d.Apply(st2, records("uname", "member"))).To(Succeed())
		Expect(st2.Uname).To(Equal("override"))
	})

	It("replaces the global layer with each global header", func() {
		Expect(d.DecodeGlobal(records("gname", "first"))).To(Succeed())
		Expect(d.DecodeGlobal(records("uname", "second"))).To(Succeed())
		Expect(d.Apply(st, nil)).To(Succeed())
		Expect(st.Gname).To(BeEmpty())
		Expect(st.Uname).To(Equal("second"))
	})

	It("ignores deleted keywords", func() {
		Expect(d.SetDeleted([]string{"u*"})).To(Succeed())
		Expect(d.Apply(st, records("uname", "x", "uid", "7", "gid", "8"))).To(Succeed())
		Expect(st.Uname).To(Equal("root"))
		Expect(st.UID).To(BeZero())
		Expect(st.GID).To(Equal(int64(8)))
	})

	It("rejects overriding protected keywords", func() {
		Expect(d.SetOverrides([]xhdr.Record{{Keyword: "size", Value: "1"}})).NotTo(Succeed())
		Expect(d.SetOverrides([]xhdr.Record{{Keyword: "GNU.sparse.map", Value: "0,1"}})).NotTo(Succeed())
	})

	It("warns about unknown keywords and keeps going", func() {
		Expect(d.Apply(st, records("SCHILY.xattr.user.x", "y", "uid", "5"))).To(Succeed())
		Expect(st.UID).To(Equal(int64(5)))
	})

	It("reports bad values and applies the rest", func() {
		err := d.Apply(st, records("uid", "-1", "gid", "12", "mtime", "yesterday"))
		Expect(err).To(HaveOccurred())
		var ev *xhdr.ErrBadValue
		Expect(errors.As(err, &ev)).To(BeTrue())
		Expect(st.GID).To(Equal(int64(12)))
	})

	It("returns structural errors", func() {
		err := d.Apply(st, []byte("12 path=abc"))
		var em *xhdr.ErrMalformed
		Expect(errors.As(err, &em)).To(BeTrue())
	})

	It("decodes volume attributes of a global header", func() {
		Expect(d.DecodeGlobal(records(
			"GNU.volume.label", "Backup 1",
			"GNU.volume.filename", "big.iso",
			"GNU.volume.size", "1048576",
			"GNU.volume.offset", "524288",
		))).To(Succeed())
		Expect(d.Volume()).To(Equal(xhdr.VolumeInfo{Label: "Backup 1", Filename: "big.iso", Size: 1048576, Offset: 524288}))
	})

	Describe("sparse keywords", func() {
		It("decodes v0.0 pairs in record order", func() {
			buf := records(
				"GNU.sparse.size", "10000",
				"GNU.sparse.numblocks", "2",
				"GNU.sparse.offset", "0",
				"GNU.sparse.numbytes", "100",
				"GNU.sparse.offset", "9800",
				"GNU.sparse.numbytes", "200",
				"size", "300",
			)
			Expect(d.Apply(st, buf)).To(Succeed())
			Expect(st.SparseMap).To(Equal([]hdr.Region{{Offset: 0, Numbytes: 100}, {Offset: 9800, Numbytes: 200}}))
			Expect(st.Size).To(Equal(int64(10000)))
			Expect(st.ArchiveFileSize).To(Equal(int64(300)))
		})

		It("rejects pairs beyond numblocks", func() {
			buf := records(
				"GNU.sparse.numblocks", "1",
				"GNU.sparse.offset", "0",
				"GNU.sparse.numbytes", "1",
				"GNU.sparse.offset", "5",
				"GNU.sparse.numbytes", "1",
			)
			err := d.Apply(st, buf)
			Expect(err).To(MatchError(ContainSubstring("excess")))
			Expect(st.SparseMap).To(HaveLen(1))
		})

		It("decodes a v0.1 map", func() {
			buf := records(
				"GNU.sparse.size", "10000",
				"GNU.sparse.map", "0,100,9800,200",
				"GNU.sparse.name", "orig/name",
			)
			Expect(d.Apply(st, buf)).To(Succeed())
			Expect(st.SparseMap).To(HaveLen(2))
			Expect(st.Name).To(Equal("orig/name"))
		})

		It("rejects an odd map", func() {
			Expect(d.Apply(st, records("GNU.sparse.map", "0,100,9800"))).
				To(MatchError(ContainSubstring("odd number of values")))
		})

		It("lets GNU.sparse.name win over path regardless of order", func() {
			Expect(d.Apply(st, records("GNU.sparse.name", "real", "path", "fake"))).To(Succeed())
			Expect(st.Name).To(Equal("real"))
			st2 := &hdr.Stat{}
			Expect(d.Apply(st2, records("path", "fake", "GNU.sparse.name", "real"))).To(Succeed())
			Expect(st2.Name).To(Equal("real"))
		})

		It("decodes v1.0 identity", func() {
			buf := records(
				"GNU.sparse.major", "1",
				"GNU.sparse.minor", "0",
				"GNU.sparse.name", "file",
				"GNU.sparse.realsize", "10000",
			)
			st.Size = 1536
			Expect(d.Apply(st, buf)).To(Succeed())
			Expect(st.SparseMajor).To(Equal(1))
			Expect(st.SparseMinor).To(Equal(0))
			Expect(st.Size).To(Equal(int64(10000)))
			Expect(st.ArchiveFileSize).To(Equal(int64(1536)))
		})
	})
})

var _ = Describe("Encoder", func() {
	It("stores keywords computed from the stat", func() {
		var (
			e  = xhdr.NewEncoder()
			h  = &xhdr.Header{}
			st = &hdr.Stat{
				Name:  "x/y",
				UID:   1 << 22,
				Mtime: time.Unix(-1, 500),
				SparseMap: []hdr.Region{
					{Offset: 0, Numbytes: 100}, {Offset: 9800, Numbytes: 200},
				},
			}
		)
		e.Store(h, "path", st, nil)
		e.Store(h, "uid", st, nil)
		e.Store(h, "mtime", st, nil)
		e.Store(h, "GNU.sparse.map", st, nil)
		e.Store(h, "GNU.sparse.offset", st, 1)
		e.Store(h, "comment", st, "hello")
		Expect(string(h.Bytes())).To(Equal(string(records(
			"path", "x/y",
			"uid", "4194304",
			"mtime", "-0.9999995",
			"GNU.sparse.map", "0,100,9800,200",
			"GNU.sparse.offset", "9800",
			"comment", "hello",
		))))

		h.Reset()
		e.Store(h, "mtime", st, nil)
		rt := &hdr.Stat{}
		Expect(xhdr.NewDecoder().Apply(rt, h.Bytes())).To(Succeed())
		Expect(rt.Mtime.Equal(st.Mtime)).To(BeTrue())
	})

	It("appends overrides in place of stored values", func() {
		e := xhdr.NewEncoder()
		Expect(e.SetOverrides([]xhdr.Record{{Keyword: "uname", Value: "anon"}})).To(Succeed())
		h := &xhdr.Header{}
		e.Store(h, "uname", &hdr.Stat{Uname: "root"}, nil)
		Expect(h.Empty()).To(BeTrue())
		e.Finish(h)
		Expect(string(h.Bytes())).To(Equal("14 uname=anon\n"))
	})

	It("names headers", func() {
		e := &xhdr.Encoder{Pid: 123}
		Expect(e.HeaderName(&hdr.Stat{Name: "hello.txt"})).To(Equal("./PaxHeaders.123/hello.txt"))
		Expect(e.HeaderName(&hdr.Stat{Name: "/abs/dir/f"})).To(Equal("abs/dir/PaxHeaders.123/f"))
		Expect(xhdr.Name(&hdr.Stat{Name: "d/f"}, xhdr.SparseV1NamePattern, 7, 0)).To(Equal("d/GNUSparseFile.7/f"))
		Expect(xhdr.Name(nil, "/tmp/GlobalHead.%p.%n%%", 9, 2)).To(Equal("/tmp/GlobalHead.9.2%"))

		long := &hdr.Stat{Name: "d/" + strings.Repeat("f", 200)}
		Expect(e.HeaderName(long)).To(HaveLen(hdr.NameSize))
	})
})

var _ = DescribeTable("time values",
	func(s string, t time.Time) {
		got, err := xhdr.ParseTime(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Equal(t)).To(BeTrue())
		Expect(xhdr.FormatTime(t)).To(Equal(s))
	},
	Entry("integral", "1700000000", time.Unix(1700000000, 0)),
	Entry("fraction", "1.000000001", time.Unix(1, 1)),
	Entry("trimmed fraction", "1.5", time.Unix(1, 500_000_000)),
	Entry("negative", "-2", time.Unix(-2, 0)),
	Entry("negative fraction", "-1.5", time.Unix(-2, 500_000_000)),
)
