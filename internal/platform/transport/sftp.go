package transport

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/medbill/edi-gateway/internal/domain/partner"
)

// sftpDialTimeout bounds the SSH handshake.
const sftpDialTimeout = 15 * time.Second

// processedDir is the inbound subdirectory processed files are archived into.
const processedDir = "processed"

// SFTPClient uploads outbound 837 batch files and fetches inbound response
// files (999/277/835) from a partner's SFTP drop. Connections are per-call:
// batch traffic is infrequent and payer gateways drop idle sessions.
type SFTPClient struct {
	hostKeyCallback ssh.HostKeyCallback
}

// NewSFTPClient returns an SFTP client. hostKeyCallback may be nil, in which
// case host keys are not verified; production configuration should supply a
// known-hosts callback.
func NewSFTPClient(hostKeyCallback ssh.HostKeyCallback) *SFTPClient {
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return &SFTPClient{hostKeyCallback: hostKeyCallback}
}

func (c *SFTPClient) connect(cfg *partner.Config) (*sftp.Client, io.Closer, error) {
	port := cfg.SFTPPort
	if port == 0 {
		port = 22
	}
	sshCfg := &ssh.ClientConfig{
		User:            cfg.SFTPUsername,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.SFTPPassword)},
		HostKeyCallback: c.hostKeyCallback,
		Timeout:         sftpDialTimeout,
	}
	addr := fmt.Sprintf("%s:%d", cfg.SFTPHost, port)
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp dial " + addr, Err: err}
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp session", Err: err}
	}
	return client, conn, nil
}

// Upload writes payload into the partner's outbound directory. The file is
// written under a temporary name and renamed into place so the payer never
// picks up a partial file.
func (c *SFTPClient) Upload(ctx context.Context, cfg *partner.Config, name string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, conn, err := c.connect(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	final := path.Join(cfg.SFTPOutboundDir, name)
	tmp := final + ".tmp"

	f, err := client.Create(tmp)
	if err != nil {
		return &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp create " + tmp, Err: err}
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp write " + tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		return &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp close " + tmp, Err: err}
	}
	if err := client.PosixRename(tmp, final); err != nil {
		return &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp rename " + final, Err: err}
	}
	return nil
}

// ListInbound returns the file names waiting in the partner's inbound
// directory, oldest first.
func (c *SFTPClient) ListInbound(ctx context.Context, cfg *partner.Config) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, conn, err := c.connect(cfg)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer client.Close()

	entries, err := client.ReadDir(cfg.SFTPInboundDir)
	if err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp list " + cfg.SFTPInboundDir, Err: err}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ModTime().Before(entries[j].ModTime()) })
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Download fetches one inbound file.
func (c *SFTPClient) Download(ctx context.Context, cfg *partner.Config, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, conn, err := c.connect(cfg)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer client.Close()

	p := path.Join(cfg.SFTPInboundDir, name)
	f, err := client.Open(p)
	if err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp open " + p, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp read " + p, Err: err}
	}
	return data, nil
}

// Archive moves a processed inbound file into the processed subdirectory so
// the next poll does not list it again.
func (c *SFTPClient) Archive(ctx context.Context, cfg *partner.Config, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, conn, err := c.connect(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	dir := path.Join(cfg.SFTPInboundDir, processedDir)
	if err := client.MkdirAll(dir); err != nil {
		return &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp mkdir " + dir, Err: err}
	}
	src := path.Join(cfg.SFTPInboundDir, name)
	dst := path.Join(dir, name)
	if err := client.PosixRename(src, dst); err != nil {
		return &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "sftp archive " + name, Err: err}
	}
	return nil
}

// OutboundFileName builds the partner-convention file name for an outbound
// 837 batch: date plus interchange sequence.
func OutboundFileName(cfg *partner.Config, interchangeControl int64, now time.Time) string {
	return fmt.Sprintf("%s_837P_%s_%09d.edi", cfg.SenderID, now.UTC().Format("20060102"), interchangeControl)
}
