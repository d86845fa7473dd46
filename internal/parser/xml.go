package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Raw document shape of the newswire feed. One document carries one
// article; an optional envelope element may wrap it. Unknown elements are
// ignored by the decoder, missing ones stay zero.
type xmlArticle struct {
	Action     string         `xml:"action"`
	Wms        xmlWmsArticle  `xml:"wms_article"`
	BodyHolder xmlBodyHolder  `xml:"wms_article_body"`
	SumHolder  xmlSumHolder   `xml:"wms_article_summary"`
	Codes      xmlCodeClasses `xml:"wms_code_classes"`
	Images     xmlImages      `xml:"wms_article_images"`
	StockCodes string         `xml:"stock_codes"`
	Keywords   string         `xml:"wms_article_keywords"`
	ArticleURL string         `xml:"article_url"`
}

type xmlWmsArticle struct {
	ArtID          string `xml:"art_id"`
	ArtYear        string `xml:"art_year"`
	ArtNo          string `xml:"art_no"`
	Gubun          string `xml:"gubun"`
	ServiceDaytime string `xml:"service_daytime"`
	Title          string `xml:"title"`
	SubTitle       string `xml:"sub_title"`
	MediaCode      string `xml:"media_code"`
	Writers        string `xml:"writers"`
	FreeType       string `xml:"free_type"`
	PubDiv         string `xml:"pub_div"`
	PubDate        string `xml:"pub_date"`
	PubEdition     string `xml:"pub_edition"`
	PubSection     string `xml:"pub_section"`
	PubPage        string `xml:"pub_page"`
	RegDt          string `xml:"reg_dt"`
	ModDt          string `xml:"mod_dt"`
	ArtOrgClass    string `xml:"art_org_class"`
}

type xmlBodyHolder struct {
	Body string `xml:"body"`
}

type xmlSumHolder struct {
	Summary string `xml:"summary"`
}

type xmlCodeClasses struct {
	Classes []xmlCodeClass `xml:"wms_code_class"`
}

type xmlCodeClass struct {
	CodeID       string `xml:"code_id"`
	CodeNm       string `xml:"code_nm"`
	LargeCodeID  string `xml:"large_code_id"`
	LargeCodeNm  string `xml:"large_code_nm"`
	MiddleCodeID string `xml:"middle_code_id"`
	MiddleCodeNm string `xml:"middle_code_nm"`
	SmallCodeID  string `xml:"small_code_id"`
	SmallCodeNm  string `xml:"small_code_nm"`
}

type xmlImages struct {
	Images []xmlImage `xml:"wms_article_image"`
}

type xmlImage struct {
	URL     string `xml:"image_url"`
	Caption string `xml:"image_caption"`
}

// decodeArticle walks the token stream until it finds the first article
// start element and decodes it. This tolerates both bare <article> documents
// and feed envelopes that wrap one.
func decodeArticle(raw []byte) (*xmlArticle, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charsetReader

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrMissingArticle
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "article" {
			continue
		}
		var doc xmlArticle
		if err := dec.DecodeElement(&doc, &se); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return &doc, nil
	}
}

// charsetReader converts legacy Korean encodings to UTF-8. Wire documents
// are usually UTF-8 today, but archived drops still declare euc-kr.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "euc-kr", "euckr", "cp949", "ks_c_5601-1987":
		return transform.NewReader(input, korean.EUCKR.NewDecoder()), nil
	case "utf-8", "":
		return input, nil
	default:
		return nil, fmt.Errorf("unsupported charset: %s", charset)
	}
}
