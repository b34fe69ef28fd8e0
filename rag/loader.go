package rag

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// Loader extracts plain-text blocks from raw document bytes. Blocks map to
// natural units of the format (a page, a paragraph run) and feed the
// chunker.
type Loader interface {
	Load(data []byte, fileName string) ([]string, error)
}

// TextLoader handles plain-text formats. The whole file is one block.
type TextLoader struct{}

func (TextLoader) Load(data []byte, fileName string) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, types.NewValidation("file %q is not valid UTF-8 text", fileName)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

// PDFLoader extracts one text block per PDF page.
type PDFLoader struct{}

func (PDFLoader) Load(data []byte, fileName string) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewValidation("file %q is not a readable PDF: %v", fileName, err)
	}

	var blocks []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages with exotic encodings are skipped, not fatal.
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			blocks = append(blocks, text)
		}
	}
	return blocks, nil
}

// DocxLoader extracts one block per paragraph from the WordprocessingML
// body. Visible text lives in w:t runs inside w:p paragraphs.
type DocxLoader struct{}

func (DocxLoader) Load(data []byte, fileName string) ([]string, error) {
	body, err := zipMember(data, "word/document.xml")
	if err != nil {
		return nil, types.NewValidation("file %q is not a readable DOCX: %v", fileName, err)
	}
	blocks, err := xmlParagraphs(body, "p", "t")
	if err != nil {
		return nil, types.NewValidation("file %q has a malformed document body: %v", fileName, err)
	}
	return blocks, nil
}

// ODTLoader extracts one block per paragraph from the OpenDocument content
// body.
type ODTLoader struct{}

func (ODTLoader) Load(data []byte, fileName string) ([]string, error) {
	body, err := zipMember(data, "content.xml")
	if err != nil {
		return nil, types.NewValidation("file %q is not a readable ODT: %v", fileName, err)
	}
	blocks, err := xmlParagraphs(body, "p", "")
	if err != nil {
		return nil, types.NewValidation("file %q has a malformed content body: %v", fileName, err)
	}
	return blocks, nil
}

func zipMember(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("missing %s", name)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// xmlParagraphs joins character data into one block per paragraph element.
// When textElem is non-empty only character data inside that element counts.
// Namespaces are ignored, matching local names is enough for both formats.
func xmlParagraphs(body []byte, paraElem, textElem string) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	var (
		blocks    []string
		para      strings.Builder
		paraDepth int
		textDepth int
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == paraElem:
				paraDepth++
			case textElem != "" && t.Name.Local == textElem:
				textDepth++
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == paraElem && paraDepth > 0:
				paraDepth--
				if paraDepth == 0 {
					if text := strings.TrimSpace(para.String()); text != "" {
						blocks = append(blocks, text)
					}
					para.Reset()
				}
			case textElem != "" && t.Name.Local == textElem && textDepth > 0:
				textDepth--
			}
		case xml.CharData:
			if paraDepth > 0 && (textElem == "" || textDepth > 0) {
				para.Write(t)
			}
		}
	}
	return blocks, nil
}

// LoaderRegistry dispatches on the file extension, lower-cased.
type LoaderRegistry struct {
	loaders map[string]Loader
	logger  *zap.Logger
}

// NewLoaderRegistry creates a registry with the built-in loaders for
// .txt, .md, .pdf, .docx and .odt files.
func NewLoaderRegistry(logger *zap.Logger) *LoaderRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoaderRegistry{
		loaders: map[string]Loader{
			".txt":  TextLoader{},
			".md":   TextLoader{},
			".pdf":  PDFLoader{},
			".docx": DocxLoader{},
			".odt":  ODTLoader{},
		},
		logger: logger.With(zap.String("component", "loader_registry")),
	}
}

// Register adds or replaces the loader for an extension (with leading dot).
func (r *LoaderRegistry) Register(ext string, loader Loader) {
	r.loaders[strings.ToLower(ext)] = loader
}

// SupportedExtensions returns the registered extensions sorted lexically.
func (r *LoaderRegistry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load picks the loader by extension and extracts the text blocks.
func (r *LoaderRegistry) Load(data []byte, fileName string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	loader, ok := r.loaders[ext]
	if !ok {
		return nil, types.NewValidation("unsupported file type %q, supported: %s",
			ext, strings.Join(r.SupportedExtensions(), ", "))
	}

	blocks, err := loader.Load(data, fileName)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("document loaded",
		zap.String("file_name", fileName),
		zap.Int("blocks", len(blocks)))
	return blocks, nil
}
