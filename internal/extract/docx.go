package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// extractDOCX reads word/document.xml out of the ZIP container and streams
// the paragraph text. DOCX has no page model, so the whole document lands on
// a single page. Failure yields an explicit empty result with a warning,
// never an error to the caller.
func (e *Extractor) extractDOCX(path string) (Result, error) {
	res := Result{
		Kind:         "DOCX",
		DetectedMime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Method:       "docx",
	}

	text, err := readDocxText(path)
	if err != nil {
		e.logger.Warn("extract.docx.failed", "path", path, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("docx extraction failed: %v", err))
		res.Pages = []Page{{PageNumber: 1}}
		e.score(&res)
		return res, nil
	}

	p := Page{PageNumber: 1, Text: text}
	if strings.TrimSpace(text) != "" {
		p.Confidence = 0.9
	}
	res.Pages = []Page{p}
	e.score(&res)
	return res, nil
}

func readDocxText(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	var para strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br", "cr":
				para.WriteByte('\n')
			case "tab":
				para.WriteByte('\t')
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				line := strings.TrimRight(para.String(), " \t")
				para.Reset()
				if line == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(line)
			}
		}
	}
	return sb.String(), nil
}
