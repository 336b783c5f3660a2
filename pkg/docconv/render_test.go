package docconv

import (
	"archive/zip"
	"bytes"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

func newDocx(body string) []byte {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create("word/document.xml")
	Expect(err).To(BeNil())
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	Expect(err).To(BeNil())
	Expect(zw.Close()).To(Succeed())
	return buf.Bytes()
}

// newPDF assembles a minimal PDF with one page per content stream.
func newPDF(streams ...string) []byte {
	var objects []string
	kids := ""
	for i := range streams {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d >>", kids, len(streams)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, stream := range streams {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	buf := new(bytes.Buffer)
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func docxParagraph(style, text string) string {
	props := ""
	if style != "" {
		props = `<w:pPr><w:pStyle w:val="` + style + `"/></w:pPr>`
	}
	return `<w:p>` + props + `<w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

var _ = Describe("renderers", func() {
	Context("markdown and text", func() {
		It("passes markdown through", func() {
			md, title, err := renderMarkdown(&Source{Data: []byte("# Guide\r\n\r\nBody text\r\n")})
			Expect(err).To(BeNil())
			Expect(md).To(Equal("# Guide\n\nBody text"))
			Expect(title).To(Equal("Guide"))
		})

		It("splits text into paragraphs", func() {
			md, title, err := renderText(&Source{Data: []byte("First line\nsecond line\n\n\n\nNext paragraph  \n")})
			Expect(err).To(BeNil())
			Expect(md).To(Equal("First line\nsecond line\n\nNext paragraph"))
			Expect(title).To(Equal("First line"))
		})
	})

	Context("headings", func() {
		DescribeTable("parseHeading",
			func(line string, level int, text string) {
				l, t := parseHeading(line)
				Expect(l).To(Equal(level))
				Expect(t).To(Equal(text))
			},
			Entry("h1", "# Title", 1, "Title"),
			Entry("h3 closed", "### Sub ###", 3, "Sub"),
			Entry("hashtag", "#hashtag", 0, ""),
			Entry("too deep", "####### seven", 0, ""),
			Entry("empty", "#", 0, ""),
			Entry("plain", "text", 0, ""),
		)
	})

	Context("html", func() {
		It("sanitizes and converts", func() {
			page := `<html><head><title>My Page</title></head><body>` +
				`<p>Hello <strong>world</strong></p><script>alert("x")</script></body></html>`

			md, title, err := newHTMLRenderer().render(&Source{Location: "/tmp/page.html", Data: []byte(page)})
			Expect(err).To(BeNil())
			Expect(title).To(Equal("My Page"))
			Expect(md).To(HavePrefix("# My Page\n\n"))
			Expect(md).To(ContainSubstring("Hello **world**"))
			Expect(md).ToNot(ContainSubstring("alert"))
		})

		It("keeps the document's own headings", func() {
			page := `<html><head><title>Ignored</title></head><body><h2>Section</h2><p>text</p></body></html>`

			md, title, err := newHTMLRenderer().render(&Source{Data: []byte(page)})
			Expect(err).To(BeNil())
			Expect(title).To(Equal("Ignored"))
			Expect(md).ToNot(HavePrefix("# Ignored"))
			Expect(md).To(ContainSubstring("## Section"))
		})
	})

	Context("pdf", func() {
		It("reads text operators from a content stream", func() {
			stream := []byte("BT\n/F1 12 Tf\n72 712 Td\n(Hello) Tj\n0 -14 Td\n[(W) 120 (orld)] TJ\nT*\n(caf\\351 \\(ok\\)) '\nET\n")
			Expect(textFromContentStream(stream)).To(Equal("Hello World café (ok)"))
		})

		DescribeTable("content stream layouts",
			func(stream, want string) {
				Expect(textFromContentStream([]byte(stream))).To(Equal(want))
			},
			Entry("single line text object", "BT /F1 12 Tf 72 712 Td (Hello) Tj 0 -14 Td (World) Tj ET", "Hello World"),
			Entry("operator before ET on one line", "BT\n/F1 12 Tf 72 712 Td\n(Hello World) Tj ET\n", "Hello World"),
			Entry("hex string", "BT /F1 12 Tf <48656C6C6F20576F726C64> Tj ET", "Hello World"),
			Entry("two byte hex string", "BT /F2 12 Tf <00480065006C006C006F> Tj ET", "Hello"),
			Entry("kerned array", "BT [(Hel) 30 (lo) -600 (World)] TJ ET", "Hello World"),
			Entry("nested parentheses", "BT (f(x) = 1) Tj ET", "f(x) = 1"),
			Entry("marked content and comments", "/Span << /ActualText (skip) >> BDC % note (no)\nBT (kept) Tj ET EMC", "kept"),
			Entry("inline image", "BI /W 1 /H 1 /BPC 8 /CS /G ID \x00(\xff) EI BT (after) Tj ET", "after"),
		)

		It("extracts text from every page of a document", func() {
			data := newPDF(
				"BT /F1 18 Tf 72 712 Td (Quarterly Report) Tj ET",
				"BT\n/F1 12 Tf\n72 712 Td\n[(Sales) -500 (rose.)] TJ\nET",
			)

			md, title, err := renderPDF(&Source{Name: "report.pdf", Data: data})
			Expect(err).To(BeNil())
			Expect(title).To(Equal("Quarterly Report"))
			Expect(md).To(Equal("Quarterly Report\n\nSales rose."))
		})

		It("fails on a document without text", func() {
			_, _, err := renderPDF(&Source{Name: "scan.pdf", Data: newPDF("q 1 0 0 1 0 0 cm Q")})
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("no text content"))
		})

		It("decodes escapes", func() {
			Expect(decodePDFString([]byte(`a\nb\\c\040d`))).To(Equal("a\nb\\c d"))
		})

		It("rejects garbage", func() {
			_, _, err := renderPDF(&Source{Data: []byte("%PDF-1.4 not really")})
			Expect(err).ToNot(BeNil())
		})
	})

	Context("docx", func() {
		It("maps heading styles", func() {
			data := newDocx(
				docxParagraph("Title", "Annual Report") +
					docxParagraph("", "Revenue grew.") +
					docxParagraph("Heading2", "Outlook") +
					docxParagraph("", "Stable."),
			)

			md, title, err := renderDocx(&Source{Data: data})
			Expect(err).To(BeNil())
			Expect(title).To(Equal("Annual Report"))
			Expect(md).To(Equal("# Annual Report\n\nRevenue grew.\n\n## Outlook\n\nStable."))
		})

		It("fails without document.xml", func() {
			buf := new(bytes.Buffer)
			zw := zip.NewWriter(buf)
			Expect(zw.Close()).To(Succeed())

			_, _, err := renderDocx(&Source{Data: buf.Bytes()})
			Expect(err).ToNot(BeNil())
		})

		DescribeTable("docxHeadingLevel",
			func(style string, level int) {
				Expect(docxHeadingLevel(style)).To(Equal(level))
			},
			Entry("title", "Title", 1),
			Entry("subtitle", "Subtitle", 2),
			Entry("heading3", "Heading3", 3),
			Entry("french", "Titre1", 1),
			Entry("normal", "Normal", 0),
		)
	})

	Context("xlsx", func() {
		It("renders a table per sheet", func() {
			f := excelize.NewFile()
			Expect(f.SetCellValue("Sheet1", "A1", "Name")).To(Succeed())
			Expect(f.SetCellValue("Sheet1", "B1", "Qty")).To(Succeed())
			Expect(f.SetCellValue("Sheet1", "A2", "bolt|nut")).To(Succeed())
			Expect(f.SetCellValue("Sheet1", "B2", 4)).To(Succeed())
			buf, err := f.WriteToBuffer()
			Expect(err).To(BeNil())

			md, title, err := renderXlsx(&Source{Name: "stock.xlsx", Data: buf.Bytes()})
			Expect(err).To(BeNil())
			Expect(title).To(Equal("stock"))
			Expect(md).To(Equal("## Sheet1\n\n| Name | Qty |\n| --- | --- |\n| bolt\\|nut | 4 |"))
		})

		It("fails on an empty workbook", func() {
			buf, err := excelize.NewFile().WriteToBuffer()
			Expect(err).To(BeNil())

			_, _, err = renderXlsx(&Source{Name: "empty.xlsx", Data: buf.Bytes()})
			Expect(err).ToNot(BeNil())
		})
	})
})
