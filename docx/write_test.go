package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"
)

// paragraph is what a reader sees of one w:p element.
type paragraph struct {
	style string
	numID string
	text  string
	bold  []string
}

func readPart(t *testing.T, data []byte, name string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("opening docx: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		return b
	}
	t.Fatalf("%s not found in package", name)
	return nil
}

// readParagraphs walks word/document.xml the same way a DOCX text
// extractor does.
func readParagraphs(t *testing.T, docXML []byte) []paragraph {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(docXML))
	var (
		paras  []paragraph
		cur    *paragraph
		inBold bool
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("document.xml is not well-formed: %v", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				cur = &paragraph{}
			case "pStyle":
				cur.style = attr(el, "val")
			case "numId":
				cur.numID = attr(el, "val")
			case "r":
				inBold = false
			case "b":
				inBold = true
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				paras = append(paras, *cur)
				cur = nil
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && cur != nil {
				cur.text += string(el)
				if inBold {
					cur.bold = append(cur.bold, string(el))
				}
			}
		}
	}
	return paras
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func TestWriteDocument(t *testing.T) {
	md := strings.Join([]string{
		"# 📖 Literature Analysis Report",
		"**Generated:** 2024-01-01 10:00:00",
		"---",
		"## 🎯 Research Question & Hypotheses",
		"1. H1 <X> & Y",
		"2. H2",
		"- bullet",
		"1. restart",
	}, "\n")

	data, err := FromMarkdown(md)
	if err != nil {
		t.Fatalf("FromMarkdown: %v", err)
	}
	paras := readParagraphs(t, readPart(t, data, "word/document.xml"))
	if len(paras) != 8 {
		t.Fatalf("paragraphs = %d, want 8", len(paras))
	}

	if paras[0].style != "Heading1" || paras[0].text != "Literature Analysis Report" {
		t.Errorf("title paragraph = %+v", paras[0])
	}
	if len(paras[1].bold) != 1 || paras[1].bold[0] != "Generated:" {
		t.Errorf("bold runs = %v, want [Generated:]", paras[1].bold)
	}
	if paras[2].text != strings.Repeat("_", ruleWidth) {
		t.Errorf("rule paragraph = %q", paras[2].text)
	}
	if paras[3].style != "Heading2" || paras[3].text != "Research Question & Hypotheses" {
		t.Errorf("heading paragraph = %+v", paras[3])
	}
	if paras[4].text != "H1 <X> & Y" {
		t.Errorf("escaped text round trip = %q", paras[4].text)
	}
	if paras[4].style != "ListNumber" || paras[4].numID != paras[5].numID {
		t.Errorf("first numbered group = %+v / %+v", paras[4], paras[5])
	}
	if paras[6].style != "ListBullet" || paras[6].numID != "1" {
		t.Errorf("bullet paragraph = %+v", paras[6])
	}
	if paras[7].numID == paras[4].numID {
		t.Errorf("second numbered group reuses numId %s", paras[7].numID)
	}

	numbering := string(readPart(t, data, "word/numbering.xml"))
	if strings.Count(numbering, "<w:startOverride") != 2 {
		t.Errorf("expected two restarting numbered instances:\n%s", numbering)
	}
}

func TestWritePackageParts(t *testing.T) {
	data, err := FromMarkdown("hello")
	if err != nil {
		t.Fatalf("FromMarkdown: %v", err)
	}
	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"word/document.xml",
		"word/styles.xml",
		"word/numbering.xml",
		"word/_rels/document.xml.rels",
		"docProps/core.xml",
	} {
		part := readPart(t, data, name)
		if err := xml.Unmarshal(part, new(struct{})); err != nil {
			t.Errorf("%s is not well-formed XML: %v", name, err)
		}
	}
	styles := string(readPart(t, data, "word/styles.xml"))
	if !strings.Contains(styles, `w:ascii="Calibri"`) || !strings.Contains(styles, `<w:sz w:val="22"/>`) {
		t.Errorf("default font is not Calibri 11pt")
	}
}

func TestWriteEmptyDocument(t *testing.T) {
	data, err := (&Document{}).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if paras := readParagraphs(t, readPart(t, data, "word/document.xml")); len(paras) != 0 {
		t.Errorf("paragraphs = %d, want 0", len(paras))
	}
}
