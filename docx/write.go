package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	relNS  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	// ruleWidth is the number of underscores standing in for a horizontal rule.
	ruleWidth = 80

	// bulletNumID references the shared bullet numbering instance. Numbered
	// lists get their own instances starting after it.
	bulletNumID = 1
)

// Write serializes the document as a .docx package.
func (d *Document) Write(w io.Writer) error {
	body, numberedGroups := d.bodyXML()

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"docProps/core.xml", corePropsXML(d.Title)},
		{"docProps/app.xml", appPropsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/numbering.xml", numberingXML(numberedGroups)},
		{"word/document.xml", body},
	}

	zw := zip.NewWriter(w)
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", p.name, err)
		}
		if _, err := io.WriteString(f, p.content); err != nil {
			return fmt.Errorf("writing %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing docx: %w", err)
	}
	return nil
}

// Bytes returns the serialized .docx package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromMarkdown converts markdown and serializes the result.
func FromMarkdown(markdown string) ([]byte, error) {
	return Convert(markdown).Bytes()
}

// bodyXML renders word/document.xml. It returns the number of contiguous
// numbered-list groups so each can restart at 1.
func (d *Document) bodyXML() (string, int) {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<w:document xmlns:w="` + wordNS + `" xmlns:r="` + relNS + `"><w:body>`)

	groups := 0
	prevNumbered := false
	for _, blk := range d.Blocks {
		if blk.Kind == NumberedItem && !prevNumbered {
			groups++
		}
		prevNumbered = blk.Kind == NumberedItem

		b.WriteString("<w:p>")
		switch blk.Kind {
		case Heading:
			b.WriteString(`<w:pPr><w:pStyle w:val="Heading` + strconv.Itoa(blk.Level) + `"/></w:pPr>`)
		case BulletItem:
			b.WriteString(listProps("ListBullet", bulletNumID))
		case NumberedItem:
			b.WriteString(listProps("ListNumber", bulletNumID+groups))
		case Rule:
			writeRun(&b, Run{Text: strings.Repeat("_", ruleWidth)})
		}
		for _, r := range blk.Runs {
			writeRun(&b, r)
		}
		b.WriteString("</w:p>")
	}

	b.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`)
	return b.String(), groups
}

func listProps(style string, numID int) string {
	return `<w:pPr><w:pStyle w:val="` + style + `"/><w:numPr><w:ilvl w:val="0"/><w:numId w:val="` +
		strconv.Itoa(numID) + `"/></w:numPr></w:pPr>`
}

func writeRun(b *strings.Builder, r Run) {
	b.WriteString("<w:r>")
	switch r.Style {
	case Bold:
		b.WriteString("<w:rPr><w:b/></w:rPr>")
	case Italic:
		b.WriteString("<w:rPr><w:i/></w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escape(r.Text))
	b.WriteString("</w:t></w:r>")
}

func escape(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>` +
	`</Types>`

const packageRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>` +
	`</Relationships>`

const appPropsXML = xml.Header + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
	`<Application>Literature Assistant</Application></Properties>`

func corePropsXML(title string) string {
	return xml.Header + `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/">` +
		`<dc:title>` + escape(title) + `</dc:title><dc:creator>Literature Assistant</dc:creator>` +
		`</cp:coreProperties>`
}

// stylesXML defines Calibri 11pt body text, four heading levels and the
// two list paragraph styles.
var stylesXML = xml.Header + `<w:styles xmlns:w="` + wordNS + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:eastAsia="Calibri" w:cs="Calibri"/>` +
	`<w:sz w:val="22"/><w:szCs w:val="22"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="120"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
	headingStyle(1, 32) + headingStyle(2, 28) + headingStyle(3, 24) + headingStyle(4, 22) +
	`<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListNumber"><w:name w:val="List Number"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:style>` +
	`</w:styles>`

func headingStyle(level, halfPoints int) string {
	n := strconv.Itoa(level)
	sz := strconv.Itoa(halfPoints)
	return `<w:style w:type="paragraph" w:styleId="Heading` + n + `"><w:name w:val="heading ` + n + `"/>` +
		`<w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
		`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="` + strconv.Itoa(level-1) + `"/></w:pPr>` +
		`<w:rPr><w:b/><w:sz w:val="` + sz + `"/><w:szCs w:val="` + sz + `"/></w:rPr></w:style>`
}

// numberingXML declares one bullet instance and one decimal instance per
// numbered group, each restarting at 1.
func numberingXML(groups int) string {
	var b strings.Builder
	b.WriteString(xml.Header + `<w:numbering xmlns:w="` + wordNS + `">`)
	b.WriteString(`<w:abstractNum w:abstractNumId="0"><w:multiLevelType w:val="singleLevel"/>` +
		`<w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/><w:lvlJc w:val="left"/>` +
		`<w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>`)
	b.WriteString(`<w:abstractNum w:abstractNumId="1"><w:multiLevelType w:val="singleLevel"/>` +
		`<w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%1."/><w:lvlJc w:val="left"/>` +
		`<w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>`)
	b.WriteString(`<w:num w:numId="` + strconv.Itoa(bulletNumID) + `"><w:abstractNumId w:val="0"/></w:num>`)
	for g := 1; g <= groups; g++ {
		b.WriteString(`<w:num w:numId="` + strconv.Itoa(bulletNumID+g) + `"><w:abstractNumId w:val="1"/>` +
			`<w:lvlOverride w:ilvl="0"><w:startOverride w:val="1"/></w:lvlOverride></w:num>`)
	}
	b.WriteString(`</w:numbering>`)
	return b.String()
}
