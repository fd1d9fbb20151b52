package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/dosewise/internal/models"
)

// Attachments are stored inline on the medication record, so they stay small.
const maxAttachmentSize = 5 << 20

// attachmentTypes lists the sniffed content types a medication may carry and
// the file extensions accepted for each. The first extension names generated
// files.
var attachmentTypes = map[string][]string{
	"image/png":       {".png"},
	"image/jpeg":      {".jpg", ".jpeg"},
	"image/gif":       {".gif"},
	"image/webp":      {".webp"},
	"application/pdf": {".pdf"},
}

var unsafeNameChars = regexp.MustCompile(`[^\w.-]`)

// payload is a file fetched for attachment, before validation.
type payload struct {
	data     []byte
	declared string // content type claimed by the source, if any
	name     string // base name suggested by the source, if any
}

func (s *Server) attachFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("medication_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.GetMedication(id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("medication not found: %s", id)), nil
	}

	var p payload
	if strings.HasPrefix(rawURL, "data:") {
		p, err = parseDataURI(rawURL)
	} else {
		p, err = s.download(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	att, err := p.attachment(req.GetString("filename", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.svc.UpdateMedication(ctx, id, models.MedicationPatch{Attachment: att}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save attachment: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"medicationId": id,
		"fileName":     att.FileName,
		"mimeType":     att.MimeType,
		"size":         len(p.data),
	}), nil
}

// attachment sniffs the content, checks it against the declared type and the
// file name, and encodes it as a data URL. name overrides the source's name.
func (p payload) attachment(name string) (*models.Attachment, error) {
	if len(p.data) > maxAttachmentSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", len(p.data), maxAttachmentSize)
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(p.data))
	exts, ok := attachmentTypes[sniffed]
	if !ok {
		return nil, fmt.Errorf("unsupported content %s (allowed: png, jpeg, gif, webp, pdf)", sniffed)
	}
	if p.declared != "" && p.declared != sniffed {
		return nil, fmt.Errorf("content is %s but was declared as %s", sniffed, p.declared)
	}

	if name == "" {
		name = p.name
	}
	name = strings.Trim(unsafeNameChars.ReplaceAllString(filepath.Base(name), "_"), ".")
	if name == "" {
		name = uuid.NewString()
	}
	switch ext := strings.ToLower(path.Ext(name)); {
	case ext == "":
		name += exts[0]
	case !slices.Contains(exts, ext):
		return nil, fmt.Errorf("extension %s does not match %s content", ext, sniffed)
	}

	return &models.Attachment{
		Data:     "data:" + sniffed + ";base64," + base64.StdEncoding.EncodeToString(p.data),
		MimeType: sniffed,
		FileName: name,
	}, nil
}

// parseDataURI decodes a base64 data:[<mediatype>];base64,<data> URI.
func parseDataURI(uri string) (payload, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return payload{}, fmt.Errorf("invalid data URI: missing comma")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return payload{}, fmt.Errorf("only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payload{}, fmt.Errorf("invalid base64 data: %w", err)
	}
	declared, _, _ := mime.ParseMediaType(mediaType)
	return payload{data: data, declared: declared}, nil
}

// download fetches an http(s) URL, re-checking the host on every redirect.
// A Content-Type header is only held against the content when it names an
// attachment type, since servers often send application/octet-stream.
func (s *Server) download(ctx context.Context, rawURL string) (payload, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return payload{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return payload{}, fmt.Errorf("unsupported scheme %q (only http/https)", u.Scheme)
	}
	if err := s.guardHost(ctx, u.Hostname()); err != nil {
		return payload{}, err
	}

	resp, err := resty.New().
		SetTimeout(30*time.Second).
		SetRedirectPolicy(
			resty.FlexibleRedirectPolicy(5),
			resty.RedirectPolicyFunc(func(r *http.Request, _ []*http.Request) error {
				return s.guardHost(r.Context(), r.URL.Hostname())
			})).
		R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return payload{}, fmt.Errorf("download failed: %w", err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()
	if resp.StatusCode() != http.StatusOK {
		return payload{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode())
	}

	// One byte over the limit is enough for attachment to reject it.
	data, err := io.ReadAll(io.LimitReader(body, maxAttachmentSize+1))
	if err != nil {
		return payload{}, fmt.Errorf("download failed: %w", err)
	}
	p := payload{data: data}
	if base := path.Base(u.Path); path.Ext(base) != "" {
		p.name = base
	}
	if ct, _, err := mime.ParseMediaType(resp.Header().Get("Content-Type")); err == nil && attachmentTypes[ct] != nil {
		p.declared = ct
	}
	return p, nil
}

// guardHost refuses hosts that resolve to link-local (cloud metadata) or
// unspecified addresses, and loopback unless allowLoopback is set. Names that
// do not resolve are left for the HTTP client to report.
func (s *Server) guardHost(ctx context.Context, host string) error {
	var addrs []netip.Addr
	if a, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{a}
	} else {
		addrs, _ = net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	}
	for _, a := range addrs {
		a = a.Unmap()
		if a.IsLoopback() && !s.allowLoopback {
			return fmt.Errorf("blocked host: loopback address %s", host)
		}
		if a.IsLinkLocalUnicast() || a.IsUnspecified() {
			return fmt.Errorf("blocked host: %s", host)
		}
	}
	return nil
}
