/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package session_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/gotar/catalog"
	"github.com/NVIDIA/gotar/cmn"
	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/rbuf"
	"github.com/NVIDIA/gotar/session"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Volumes", func() {
	Describe("label", func() {
		labeled := func(format, label string) []byte {
			cfg := newConfig(format)
			cfg.Label = label
			return create(cfg, withFiles("f", "data"))
		}
		readLabeled := func(label string, archive []byte) ([]member, error) {
			cfg := cmn.DefaultConfig()
			cfg.Label = label
			return extract(cfg, archive)
		}

		It("should write a volume header first", func() {
			archive := labeled("gnu", "backup-2026")
			blk := (*hdr.Block)(archive[:hdr.BlockSize])
			Expect(blk.Typeflag()).To(Equal(byte(hdr.VolHeader)))
			Expect(blk.Name()).To(Equal("backup-2026"))

			members, err := readLabeled("backup-*", archive)
			Expect(err).NotTo(HaveOccurred())
			Expect(names(members)).To(Equal([]string{"backup-2026", "f"}))
			Expect(members[0].st.Typeflag).To(Equal(byte(hdr.VolHeader)))
		})

		It("should store the label in a global header in POSIX", func() {
			archive := labeled("posix", "backup")
			Expect((*hdr.Block)(archive[:hdr.BlockSize]).Typeflag()).To(Equal(byte(hdr.XGlType)))
			Expect(bytes.Contains(archive, []byte("GNU.volume.label=backup\n"))).To(BeTrue())

			s, err := session.Open(&session.Args{Config: &cmn.Config{Format: "gnu", BlockingFactor: 20, Label: "backup"},
				Medium: bytes.NewReader(archive)})
			Expect(err).NotTo(HaveOccurred())
			st, err := s.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Name).To(Equal("f"))
			Expect(s.Label()).To(Equal("backup"))
			Expect(s.Close()).To(Succeed())
		})

		It("should fail on a label mismatch", func() {
			_, err := readLabeled("other", labeled("gnu", "backup"))
			Expect(err).To(MatchError(`Volume "backup" does not match "other"`))
		})

		It("should fail on an unlabeled archive", func() {
			_, err := readLabeled("backup", create(newConfig("gnu"), withFiles("f", "data")))
			Expect(err).To(MatchError(`Archive not labeled to match "backup"`))
		})
	})

	Describe("multi-volume", func() {
		var (
			dir     string
			vols    []string
			content string
		)

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			vols = nil
			for i := range 6 {
				vols = append(vols, filepath.Join(dir, "vol"+string(rune('1'+i))+".tar"))
			}
			content = strings.Repeat("0123456789", 300)
		})

		mvConfig := func(format string) *cmn.Config {
			cfg := newConfig(format)
			cfg.BlockingFactor = 2
			cfg.TapeLength = cos.SizeIEC(2 * cos.KiB)
			cfg.MultiVolume = true
			return cfg
		}

		DescribeTable("should continue a member on the next volume",
			func(format string, continuation byte) {
				cfg := mvConfig(format)
				cfg.Catalog = filepath.Join(dir, "catalog.db")
				s, err := session.Open(&session.Args{Config: cfg, Names: vols, Mode: session.ModeWrite, Now: now})
				Expect(err).NotTo(HaveOccurred())
				st, r := regular("big.bin", content)
				Expect(s.WriteMember(st, r)).To(Succeed())
				st, r = regular("small", "small")
				Expect(s.WriteMember(st, r)).To(Succeed())
				Expect(s.Close()).To(Succeed())

				first, err := os.ReadFile(vols[0])
				Expect(err).NotTo(HaveOccurred())
				Expect(first).To(HaveLen(2 * cos.KiB))
				second, err := os.ReadFile(vols[1])
				Expect(err).NotTo(HaveOccurred())
				blk := (*hdr.Block)(second[:hdr.BlockSize])
				Expect(blk.Typeflag()).To(Equal(continuation))
				if continuation == hdr.MultiVol {
					Expect(blk.Name()).To(Equal("big.bin"))
				}

				cat, err := catalog.Open(cfg.Catalog)
				Expect(err).NotTo(HaveOccurred())
				volumes, err := cat.Volumes()
				Expect(err).NotTo(HaveOccurred())
				Expect(len(volumes)).To(BeNumerically(">=", 2))
				Expect(volumes[0].Name).To(Equal(vols[0]))
				Expect(volumes[0].Size).To(Equal(int64(2 * cos.KiB)))
				Expect(cat.Close()).To(Succeed())

				cfg = mvConfig(format)
				s, err = session.Open(&session.Args{Config: cfg, Names: vols})
				Expect(err).NotTo(HaveOccurred())
				members, err := drain(s)
				Expect(err).NotTo(HaveOccurred())
				Expect(s.Close()).To(Succeed())
				Expect(names(members)).To(Equal([]string{"big.bin", "small"}))
				Expect(members[0].data).To(Equal(content))
				Expect(members[1].data).To(Equal("small"))
			},
			Entry("gnu", "gnu", byte(hdr.MultiVol)),
			Entry("posix", "posix", byte(hdr.XGlType)),
		)

		It("should reject a volume out of order", func() {
			s, err := session.Open(&session.Args{Config: mvConfig("gnu"), Names: vols, Mode: session.ModeWrite, Now: now})
			Expect(err).NotTo(HaveOccurred())
			st, r := regular("big.bin", content)
			Expect(s.WriteMember(st, r)).To(Succeed())
			Expect(s.Close()).To(Succeed())

			// volume 2 replaced by an empty one
			Expect(os.WriteFile(vols[3], make([]byte, 2*hdr.BlockSize), 0o644)).To(Succeed())
			s, err = session.Open(&session.Args{Config: mvConfig("gnu"), Names: []string{vols[0], vols[3]}})
			Expect(err).NotTo(HaveOccurred())
			_, err = drain(s)
			Expect(err).To(MatchError(rbuf.ErrVolumeAbort))
			Expect(err).To(MatchError(ContainSubstring("big.bin is not continued on this volume")))
		})

		It("should run out of volume names", func() {
			s, err := session.Open(&session.Args{Config: mvConfig("gnu"), Names: vols[:1], Mode: session.ModeWrite, Now: now})
			Expect(err).NotTo(HaveOccurred())
			st, r := regular("big.bin", content)
			Expect(s.WriteMember(st, r)).To(MatchError(rbuf.ErrVolumeAbort))
			Expect(s.Close()).To(MatchError(rbuf.ErrVolumeAbort))
		})
	})

	Describe("update", func() {
		It("should append after the last member", func() {
			fqn := filepath.Join(GinkgoT().TempDir(), "archive.tar")
			Expect(os.WriteFile(fqn, create(newConfig("gnu"), withFiles("one", "1", "two", "22")), 0o644)).To(Succeed())

			s, err := session.Open(&session.Args{Config: newConfig("gnu"), Names: []string{fqn}, Mode: session.ModeUpdate, Now: now})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Buffer().Writing()).To(BeTrue())
			st, r := regular("three", "333")
			Expect(s.WriteMember(st, r)).To(Succeed())
			Expect(s.Close()).To(Succeed())

			b, err := os.ReadFile(fqn)
			Expect(err).NotTo(HaveOccurred())
			members, err := extract(nil, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(names(members)).To(Equal([]string{"one", "two", "three"}))
			Expect(members[2].data).To(Equal("333"))
		})

		It("should refuse to update what it cannot seek", func() {
			archive := create(newConfig("gnu"), withFiles("one", "1"))
			_, err := session.Open(&session.Args{Medium: bytes.NewReader(archive), Mode: session.ModeUpdate})
			Expect(err).To(MatchError(rbuf.ErrNotSeekable))
		})
	})
})
