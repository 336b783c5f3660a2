package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/doc-processor/internal/cli"
)

var _ = Describe("process-document", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := cli.NewCmdProcessDocument()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = new(bytes.Buffer)
	})

	It("lists the supported formats in its help", func() {
		Expect(run("--help")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Supported formats: .md, .txt, .html, .pdf, .docx, .xlsx."))
	})

	It("rejects a missing local input without writing anything", func() {
		input := filepath.Join(dir, "missing.pdf")
		chunks := filepath.Join(dir, "chunks.json")
		md := filepath.Join(dir, "doc.md")

		err := run(input, chunks, md)
		Expect(err).ToNot(BeNil())

		var notFound *cli.ErrInputNotFound
		Expect(errors.As(err, &notFound)).To(BeTrue())
		Expect(out.String()).To(Equal("Error: Input file '" + input + "' does not exist.\n"))
		Expect(chunks).ToNot(BeAnExistingFile())
		Expect(md).ToNot(BeAnExistingFile())
	})

	It("converts a local markdown file", func() {
		input := filepath.Join(dir, "guide.md")
		Expect(os.WriteFile(input, []byte("# Guide\n\nInstall <tools> & run.\n\n## Next\n\nça marche."), 0644)).To(Succeed())
		chunks := filepath.Join(dir, "chunks.json")
		md := filepath.Join(dir, "guide.out.md")

		Expect(run(input, chunks, md, "--min-tokens", "1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Document processing completed successfully!"))

		data, err := os.ReadFile(chunks)
		Expect(err).To(BeNil())
		var texts []string
		Expect(json.Unmarshal(data, &texts)).To(Succeed())
		Expect(texts).To(Equal([]string{"Install <tools> & run.", "ça marche."}))
		Expect(string(data)).To(ContainSubstring("<tools> &"))

		rendered, err := os.ReadFile(md)
		Expect(err).To(BeNil())
		Expect(string(rendered)).To(HavePrefix("# Guide"))
	})

	It("reports conversion failures", func() {
		input := filepath.Join(dir, "blob.bin")
		Expect(os.WriteFile(input, []byte{0x00, 0x01, 0xfe}, 0644)).To(Succeed())

		err := run(input, filepath.Join(dir, "c.json"), filepath.Join(dir, "m.md"))
		Expect(err).ToNot(BeNil())
		Expect(out.String()).To(ContainSubstring("Error processing document"))
		Expect(filepath.Join(dir, "c.json")).ToNot(BeAnExistingFile())
	})

	It("needs exactly three arguments", func() {
		Expect(run("only-one")).ToNot(Succeed())
	})
})
