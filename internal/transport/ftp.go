package transport

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/yankdl/yank/internal/utils"
)

// FTPTransport speaks classic FTP. Servers stream a file per data
// connection, so resources are size-known via SIZE but never fetched in
// ranged segments.
type FTPTransport struct {
	dialTimeout time.Duration
}

func NewFTP() *FTPTransport {
	return &FTPTransport{dialTimeout: 30 * time.Second}
}

func ftpAddr(parsed *url.URL) string {
	if parsed.Port() == "" {
		return net.JoinHostPort(parsed.Hostname(), "21")
	}
	return parsed.Host
}

func ftpCredentials(parsed *url.URL) (string, string) {
	if parsed.User == nil {
		return "anonymous", "anonymous"
	}
	user := parsed.User.Username()
	pass, _ := parsed.User.Password()
	return user, pass
}

func (t *FTPTransport) connect(ctx context.Context, parsed *url.URL) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(ftpAddr(parsed), ftp.DialWithContext(ctx), ftp.DialWithTimeout(t.dialTimeout))
	if err != nil {
		return nil, err
	}
	user, pass := ftpCredentials(parsed)
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

func (t *FTPTransport) Probe(ctx context.Context, rawURL string) (Info, error) {
	log := utils.GetLogger("ftp-probe")
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Info{}, &ProbeError{URL: rawURL, Err: err}
	}
	conn, err := t.connect(ctx, parsed)
	if err != nil {
		return Info{}, &ProbeError{URL: rawURL, Err: err}
	}
	defer conn.Quit()
	size, err := conn.FileSize(parsed.Path)
	if err != nil {
		// SIZE is an extension some servers lack; transfer still works.
		log.Debug().Err(err).Str("path", parsed.Path).Msg("SIZE query failed, size unknown")
		size = -1
	}
	return Info{Size: size, SupportsRange: false, Filename: path.Base(parsed.Path)}, nil
}

func (t *FTPTransport) OpenRange(ctx context.Context, rawURL string, start, end int64) (io.ReadCloser, error) {
	return nil, utils.ErrRangeRequestsNotSupported
}

func (t *FTPTransport) OpenStream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := t.connect(ctx, parsed)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(parsed.Path)
	if err != nil {
		conn.Quit()
		return nil, err
	}
	return &ftpStream{resp: resp, conn: conn}, nil
}

// ftpStream ties the data connection and the control connection together so
// closing the reader also quits the session.
type ftpStream struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (s *ftpStream) Read(p []byte) (int, error) {
	return s.resp.Read(p)
}

func (s *ftpStream) Close() error {
	err := s.resp.Close()
	if qerr := s.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
