/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr_test

import (
	"strings"
	"time"

	"github.com/NVIDIA/gotar/hdr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func roundTrip(format hdr.Format, st *hdr.Stat) (*hdr.Header, *hdr.Stat) {
	enc := hdr.NewEncoder(format)
	h, err := enc.StartHeader(st)
	Expect(err).NotTo(HaveOccurred())
	hdr.FinishHeader(&h.Block)

	dec := &hdr.Decoder{}
	status, err := dec.VerifyChecksum(&h.Block)
	Expect(err).NotTo(HaveOccurred())
	Expect(status).To(Equal(hdr.StatusSuccess))

	out := &hdr.Stat{}
	var longName *string
	if h.LongName != "" {
		longName = &h.LongName
	}
	hdr.DecodeNames(&h.Block, out, longName, nil)
	Expect(dec.DecodeHeader(&h.Block, out, len(h.XKeys) > 0)).To(Succeed())
	return h, out
}

var _ = Describe("Header", func() {
	mtime := time.Unix(1700000000, 0)

	DescribeTable("round-trip",
		func(format hdr.Format, expected hdr.Format) {
			st := &hdr.Stat{
				Name:  "dir/hello.txt",
				Mode:  hdr.SIFREG | 0o644,
				UID:   1000,
				GID:   100,
				Size:  5,
				Mtime: mtime,
				Uname: "alice",
				Gname: "users",
			}
			h, out := roundTrip(format, st)
			Expect(h.XKeys).To(BeEmpty())
			Expect(out.Name).To(Equal(st.Name))
			Expect(out.Mode).To(Equal(st.Mode))
			Expect(out.UID).To(Equal(st.UID))
			Expect(out.GID).To(Equal(st.GID))
			Expect(out.Size).To(Equal(st.Size))
			Expect(out.Mtime.Equal(st.Mtime)).To(BeTrue())
			Expect(out.Format).To(Equal(expected))
			if format != hdr.FormatV7 {
				Expect(out.Uname).To(Equal("alice"))
				Expect(out.Gname).To(Equal("users"))
				Expect(out.Typeflag).To(Equal(byte(hdr.RegType)))
			} else {
				Expect(out.Typeflag).To(Equal(byte(hdr.ARegType)))
			}
		},
		Entry("v7", hdr.FormatV7, hdr.FormatV7),
		Entry("ustar", hdr.FormatUSTAR, hdr.FormatUSTAR),
		Entry("oldgnu", hdr.FormatOldGNU, hdr.FormatOldGNU),
		Entry("gnu reads back as oldgnu", hdr.FormatGNU, hdr.FormatOldGNU),
		Entry("star", hdr.FormatSTAR, hdr.FormatSTAR),
	)

	It("should produce the minimal USTAR header", func() {
		st := &hdr.Stat{Name: "hello.txt", Mode: 0o644, Size: 5, Mtime: mtime}
		h, out := roundTrip(hdr.FormatUSTAR, st)
		Expect(out.Name).To(Equal("hello.txt"))
		Expect(out.Size).To(Equal(int64(5)))
		Expect(h.Block.Magic()).To(Equal(hdr.TMagic))
		Expect(h.Block.Version()).To(Equal(hdr.TVersion))
		Expect(string(h.Block.SizeField())).To(Equal("00000000005\x00"))
	})

	Describe("long names", func() {
		long := strings.Repeat("d/", 50) + strings.Repeat("x", 50) // 150 bytes

		It("should defer to an 'L' record in GNU dialects", func() {
			for _, format := range []hdr.Format{hdr.FormatGNU, hdr.FormatOldGNU} {
				h, out := roundTrip(format, &hdr.Stat{Name: long, Mode: 0o644, Mtime: mtime})
				Expect(h.LongName).To(Equal(long))
				Expect(h.Block.Name()).To(Equal(long[:hdr.NameSize]))
				Expect(out.Name).To(Equal(long))
			}
		})

		It("should split into prefix and name in USTAR", func() {
			h, out := roundTrip(hdr.FormatUSTAR, &hdr.Stat{Name: long, Mode: 0o644, Mtime: mtime})
			Expect(h.LongName).To(BeEmpty())
			Expect(h.Block.Prefix()).NotTo(BeEmpty())
			Expect(len(h.Block.Name())).To(BeNumerically("<=", hdr.NameSize))
			Expect(out.Name).To(Equal(long))
		})

		It("should keep STAR prefix within 130 bytes", func() {
			h, out := roundTrip(hdr.FormatSTAR, &hdr.Stat{Name: long, Mode: 0o644, Mtime: mtime})
			Expect(len(h.Block.Prefix())).To(BeNumerically("<=", hdr.StarPrefix-1))
			Expect(out.Format).To(Equal(hdr.FormatSTAR))
			Expect(out.Name).To(Equal(long))
		})

		It("should request a 'path' keyword in POSIX", func() {
			enc := hdr.NewEncoder(hdr.FormatPOSIX)
			h, err := enc.StartHeader(&hdr.Stat{Name: long, Mode: 0o644, Mtime: mtime})
			Expect(err).NotTo(HaveOccurred())
			Expect(h.XKeys).To(ContainElement("path"))

			h, err = enc.StartHeader(&hdr.Stat{Name: "caf\xc3\xa9", Mode: 0o644, Mtime: mtime})
			Expect(err).NotTo(HaveOccurred())
			Expect(h.XKeys).To(ContainElement("path"))
		})

		It("should fail when the name cannot be represented", func() {
			_, err := hdr.NewEncoder(hdr.FormatV7).StartHeader(&hdr.Stat{Name: long, Mtime: mtime})
			Expect(err).To(MatchError(hdr.ErrNameTooLong))

			unsplittable := strings.Repeat("x", 150)
			_, err = hdr.NewEncoder(hdr.FormatUSTAR).StartHeader(&hdr.Stat{Name: unsplittable, Mtime: mtime})
			Expect(err).To(MatchError(hdr.ErrNameTooLong))

			_, err = hdr.NewEncoder(hdr.FormatUSTAR).StartHeader(&hdr.Stat{Name: strings.Repeat("a/", 130), Mtime: mtime})
			Expect(err).To(MatchError(hdr.ErrNameTooLong))
		})

		It("should handle long link names per dialect", func() {
			link := strings.Repeat("l", 120)
			st := &hdr.Stat{Name: "sym", LinkName: link, Mode: hdr.SIFLNK | 0o777, Mtime: mtime}

			h, err := hdr.NewEncoder(hdr.FormatGNU).StartHeader(st)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.LongLink).To(Equal(link))
			Expect(h.Block.Typeflag()).To(Equal(byte(hdr.SymType)))

			h, err = hdr.NewEncoder(hdr.FormatPOSIX).StartHeader(st)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.XKeys).To(ContainElement("linkpath"))

			_, err = hdr.NewEncoder(hdr.FormatUSTAR).StartHeader(st)
			Expect(err).To(MatchError(hdr.ErrLinkTooLong))
		})
	})

	Describe("POSIX keywords", func() {
		It("should move out-of-range numbers and times to the extended header", func() {
			st := &hdr.Stat{
				Name:  "big",
				Mode:  0o600,
				UID:   hdr.MaxOctal7 + 1,
				GID:   7,
				Size:  hdr.MaxOctal11 + 1,
				Mtime: time.Unix(-1, 500),
				Atime: mtime,
				Ctime: mtime,
				Uname: strings.Repeat("u", 40),
				Gname: "grp",
			}
			h, err := hdr.NewEncoder(hdr.FormatPOSIX).StartHeader(st)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.XKeys).To(ConsistOf("uid", "size", "mtime", "atime", "ctime", "uname"))
			Expect(h.Block.Gname()).To(Equal("grp"))
		})
	})

	Describe("dialect detection", func() {
		It("should recognize STAR time fields", func() {
			var b hdr.Block
			b.SetMagic(hdr.FormatUSTAR)
			Expect(hdr.DetectFormat(&b, false)).To(Equal(hdr.FormatUSTAR))
			Expect(hdr.DetectFormat(&b, true)).To(Equal(hdr.FormatPOSIX))

			copy(b.StarAtime(), "14444444444 ")
			copy(b.StarCtime(), "14444444444 ")
			Expect(hdr.DetectFormat(&b, false)).To(Equal(hdr.FormatSTAR))

			b.StarPrefix()[hdr.StarPrefix-1] = 'x'
			Expect(hdr.DetectFormat(&b, false)).To(Equal(hdr.FormatUSTAR))
		})

		It("should fall back to V7 without magic", func() {
			var b hdr.Block
			Expect(hdr.DetectFormat(&b, false)).To(Equal(hdr.FormatV7))
			b.SetMagic(hdr.FormatGNU)
			Expect(hdr.DetectFormat(&b, false)).To(Equal(hdr.FormatOldGNU))
		})

		It("should report zero size for hard links", func() {
			var b hdr.Block
			enc := hdr.NewEncoder(hdr.FormatUSTAR)
			Expect(enc.OffToChars(b.SizeField(), 100)).To(Succeed())
			b.SetTypeflag(hdr.LnkType)
			size, err := (&hdr.Decoder{}).DecodeSize(&b)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(BeZero())
		})
	})

	Describe("private headers", func() {
		It("should write '././@LongLink' with the OLDGNU magic", func() {
			enc := hdr.NewEncoder(hdr.FormatGNU)
			b, err := enc.PrivateHeader(hdr.LongLinkName, 151, hdr.LongName)
			Expect(err).NotTo(HaveOccurred())
			hdr.FinishHeader(b)
			Expect(b.Name()).To(Equal(hdr.LongLinkName))
			Expect(hdr.DetectFormat(b, false)).To(Equal(hdr.FormatOldGNU))
			Expect(hdr.IsExtendedType(b.Typeflag())).To(BeTrue())
		})
	})
})
