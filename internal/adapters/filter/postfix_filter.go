package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

// Header status values
const (
	StatusRansomware    = "Ransomware"
	StatusClean         = "Clean"
	StatusNoExecutables = "NoExecutables"
	StatusError         = "Error"
)

const maxReasonLength = 900

// Analyzer runs the detection pipeline on one sample
type Analyzer interface {
	Analyze(ctx context.Context, req core.AnalysisRequest) (*core.AnalysisReport, error)
}

// PostfixOptions holds the gateway settings of a PostfixFilter
type PostfixOptions struct {
	ListenAddr        string
	BlockRansomware   bool
	MaxAttachmentSize int64
	TempDir           string
	StatusHeader      string
	ScoreHeader       string
	ReasonHeader      string
	PostfixAddr       string
	PostfixPort       int
	PostfixEnabled    bool
}

// PostfixFilter implements a Postfix content filter that scans executable
// attachments for ransomware
type PostfixFilter struct {
	analyzer      Analyzer
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	opts          PostfixOptions
	server        *smtp.Server
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	analyzer Analyzer,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	opts PostfixOptions,
) *PostfixFilter {
	return &PostfixFilter{
		analyzer:      analyzer,
		logger:        logger,
		textProcessor: textProcessor,
		opts:          opts,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.opts.ListenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxRecipients = 50
	if f.opts.MaxAttachmentSize > 0 {
		// base64 inflates attachments by a third
		f.server.MaxMessageBytes = f.opts.MaxAttachmentSize*2 + 1<<20
	}

	f.logger.Info("Postfix filter starting", zap.String("address", f.opts.ListenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessFile analyzes a single file outside of an SMTP session
func (f *PostfixFilter) ProcessFile(ctx context.Context, path string) (*core.AnalysisReport, error) {
	return f.analyzer.Analyze(ctx, core.AnalysisRequest{Path: path})
}

// scanResult aggregates the verdicts of every executable in a message
type scanResult struct {
	Status  string
	Score   float64
	Reasons []string
	Reports []*core.AnalysisReport
}

// scanMessage analyzes each executable attachment of a raw message
func (f *PostfixFilter) scanMessage(ctx context.Context, raw []byte) (*scanResult, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	attachments, err := extractAttachments(msg, f.opts.MaxAttachmentSize)
	if err != nil {
		// keep whatever was decoded before the malformed part
		f.logger.Warn("Failed to walk all MIME parts", zap.Error(err))
	}

	result := &scanResult{Status: StatusNoExecutables}
	for _, a := range attachments {
		if !isExecutable(a) {
			continue
		}
		if a.Truncated {
			f.logger.Warn("Skipping oversized attachment",
				zap.String("attachment", a.Name),
				zap.Int64("max_size", f.opts.MaxAttachmentSize))
			result.Reasons = append(result.Reasons, fmt.Sprintf("%s: skipped (too large)", a.Name))
			continue
		}

		report, err := f.analyzeAttachment(ctx, a)
		if err != nil {
			f.logger.Error("Failed to analyze attachment", zap.String("attachment", a.Name), zap.Error(err))
			if result.Status != StatusRansomware {
				result.Status = StatusError
			}
			result.Reasons = append(result.Reasons, fmt.Sprintf("%s: analysis failed", a.Name))
			continue
		}

		result.Reports = append(result.Reports, report)
		result.Score = max(result.Score, report.Probability)
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%s: %s (%.2f)", report.Filename, report.Label, report.Probability))

		switch {
		case report.IsRansomware:
			result.Status = StatusRansomware
		case result.Status == StatusNoExecutables:
			result.Status = StatusClean
		}
	}

	return result, nil
}

func (f *PostfixFilter) analyzeAttachment(ctx context.Context, a attachment) (*core.AnalysisReport, error) {
	tmp, err := os.CreateTemp(f.opts.TempDir, "attachment-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}

	return f.analyzer.Analyze(ctx, core.AnalysisRequest{Path: tmp.Name(), DisplayName: a.Name})
}

// headers renders the verdict headers of a scan
func (f *PostfixFilter) headers(result *scanResult) [][2]string {
	reason := strings.Join(result.Reasons, "; ")
	if reason == "" {
		reason = "no executable attachments"
	}
	return [][2]string{
		{f.opts.StatusHeader, result.Status},
		{f.opts.ScoreHeader, fmt.Sprintf("%.4f", result.Score)},
		{f.opts.ReasonHeader, f.textProcessor.HeaderValue(reason, maxReasonLength)},
	}
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.opts.PostfixAddr, fmt.Sprint(f.opts.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// message is already queued
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data scans the message and relays it with verdict headers
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter

	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := f.scanMessage(ctx, raw)
	if err != nil {
		f.logger.Error("Failed to scan message", zap.Error(err), zap.String("sender", s.sender))
		result = &scanResult{Status: StatusError, Reasons: []string{"message could not be parsed"}}
	}

	if result.Status == StatusRansomware && f.opts.BlockRansomware {
		f.logger.Info("Rejecting message carrying ransomware",
			zap.String("from", s.sender),
			zap.Float64("score", result.Score),
			zap.Strings("reasons", result.Reasons))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected: ransomware detected (score: %.2f)", result.Score),
		}
	}

	drop := []string{f.opts.StatusHeader, f.opts.ScoreHeader, f.opts.ReasonHeader}
	modified := rewriteHeaders(raw, f.headers(result), drop)

	if f.opts.PostfixEnabled {
		if err := f.sendToPostfix(s.sender, s.recipients, modified); err != nil {
			f.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	f.logger.Info("Processed email",
		zap.String("from", s.sender),
		zap.String("status", result.Status),
		zap.Float64("score", result.Score),
		zap.Int("executables", len(result.Reports)))

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
