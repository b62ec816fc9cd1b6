// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// default constants
const (
	DefaultTimeout = 20 * time.Second
	DefaultPort    = 22
)

// Client represents ssh client.
type Client struct {
	*ssh.Client
}

type Config struct {
	User                 string
	Host                 string
	Port                 int
	Timeout              time.Duration
	Password             string
	PrivateKeyPath       string
	PrivateKeyPassphrase string
	hostKeyCallBack      ssh.HostKeyCallback
}

func (c *Config) SetHostKeyCallback(hostKeyCallBack ssh.HostKeyCallback) {
	c.hostKeyCallBack = hostKeyCallBack
}

// RunResult carries the fully captured outcome of one remote command.
// Quorum forcing mutates consensus state one command at a time, so every
// transition is gated on an inspected result rather than combined output.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ok reports whether the command exited zero.
func (r RunResult) Ok() bool {
	return r.ExitCode == 0
}

// NewClient returns new ssh client and error if any.
func NewClient(config *Config) (*Client, error) {
	c := &Client{}
	var auth Auth
	var hostKeyCallback ssh.HostKeyCallback
	var err error

	auth, err = configureAuth(config.Password, config.PrivateKeyPath, config.PrivateKeyPassphrase)
	if err != nil {
		return nil, errors.New("failed to configure auth: " + err.Error())
	}

	hostKeyCallback, err = configureHostKeyCallback(config.hostKeyCallBack)
	if err != nil {
		return nil, errors.New("failed to configure hostKeyCallBack: " + err.Error())
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	if config.Port == 0 {
		config.Port = DefaultPort
	}

	c.Client, err = ssh.Dial("tcp", net.JoinHostPort(config.Host, fmt.Sprint(config.Port)), &ssh.ClientConfig{
		User:            config.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         config.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Run starts a new SSH session and runs cmd, returning the captured exit
// code and split stdout/stderr streams. A non-zero exit is reported through
// RunResult, not the error; the error covers transport and session failures
// only, so the caller always sees what the remote command actually printed.
func (c Client) Run(cmd string) (RunResult, error) {
	var (
		res    RunResult
		stdout bytes.Buffer
		stderr bytes.Buffer
	)

	sess, err := c.NewSession()
	if err != nil {
		return res, err
	}
	defer sess.Close()

	sess.Stdout = &stdout
	sess.Stderr = &stderr

	err = sess.Run(cmd)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		var ee *ssh.ExitError
		if errors.As(err, &ee) {
			res.ExitCode = ee.ExitStatus()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// Sudo runs cmd through the remote privilege-escalation mechanism.
func (c Client) Sudo(cmd string) (RunResult, error) {
	return c.Run("sudo " + cmd)
}

// newSftp returns new sftp client and error if any.
func (c Client) newSftp(opts ...sftp.ClientOption) (*sftp.Client, error) {
	return sftp.NewClient(c.Client, opts...)
}

// Close client net connection.
func (c Client) Close() error {
	return c.Client.Close()
}

// makeTempPath generates temporary file location
func makeTempPath(basePath string) string {
	return filepath.Join("/tmp", fmt.Sprintf("quorum-rescue_%d_%s", time.Now().UnixNano(), filepath.Base(basePath)))
}

// Upload a local file to remote server!
func (c Client) Upload(localPath string, remotePath string) (err error) {
	local, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer local.Close()

	localFileInfo, err := local.Stat()
	if err != nil {
		return err
	}

	if err := c.sftpUpload(local, remotePath, localFileInfo.Mode()); err != nil {
		if isPermissionDenied(err) {
			return c.sudoUpload(localPath, remotePath, localFileInfo)
		}
		return err
	}

	return nil
}

func (c Client) sftpUpload(local *os.File, remotePath string, mode os.FileMode) error {
	if _, err := local.Seek(0, 0); err != nil {
		return err
	}

	ftp, err := c.newSftp()
	if err != nil {
		return err
	}
	defer ftp.Close()

	remote, err := ftp.Create(remotePath)
	if err != nil {
		return err
	}
	defer remote.Close()
	if _, err = io.Copy(remote, local); err != nil {
		return err
	}

	return remote.Chmod(mode)
}

func (c Client) sudoUpload(localPath string, remotePath string, info os.FileInfo) error {
	// The direct sftp write was denied, so stage the file in a temporary
	// location and move it into place with escalated privileges.
	tempPath := makeTempPath(localPath)

	local, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer local.Close()

	if err := c.sftpUpload(local, tempPath, info.Mode()); err != nil {
		return fmt.Errorf("failed to upload to temp path %s: %w", tempPath, err)
	}
	// ensure temporary file is cleaned up
	defer c.Run(fmt.Sprintf("sudo rm -f %s", tempPath))

	if res, err := c.Run(fmt.Sprintf("sudo mv %s %s", tempPath, remotePath)); err != nil || !res.Ok() {
		return fmt.Errorf("failed to sudo mv from %s to %s: %s", tempPath, remotePath, resultError(res, err))
	}

	if res, err := c.Run(fmt.Sprintf("sudo chmod %o %s", info.Mode().Perm(), remotePath)); err != nil || !res.Ok() {
		return fmt.Errorf("failed to sudo chmod on %s: %s", remotePath, resultError(res, err))
	}

	return nil
}

// Download file from remote server!
func (c Client) Download(remotePath string, localPath string) (err error) {
	if err := c.sftpDownload(remotePath, localPath); err != nil {
		if isPermissionDenied(err) {
			return c.sudoDownload(remotePath, localPath)
		}
		return err
	}
	return nil
}

func (c Client) sftpDownload(remotePath string, localPath string) error {
	local, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer local.Close()

	ftp, err := c.newSftp()
	if err != nil {
		return err
	}
	defer ftp.Close()

	remote, err := ftp.Open(remotePath)
	if err != nil {
		return err
	}
	defer remote.Close()

	remoteFileInfo, err := remote.Stat()
	if err != nil {
		return err
	}

	if _, err = io.Copy(local, remote); err != nil {
		return err
	}

	if err = local.Chmod(remoteFileInfo.Mode()); err != nil {
		return err
	}

	return local.Sync()
}

func (c Client) sudoDownload(remotePath string, localPath string) error {
	// Stage a privileged copy in a temporary location, hand it to the
	// connecting user, then fetch it over sftp.
	tempPath := makeTempPath(remotePath)

	if res, err := c.Run(fmt.Sprintf("sudo cp -p %s %s", remotePath, tempPath)); err != nil || !res.Ok() {
		return fmt.Errorf("failed to sudo cp to %s: %s", tempPath, resultError(res, err))
	}
	defer c.Run(fmt.Sprintf("sudo rm -f %s", tempPath))

	if res, err := c.Run(fmt.Sprintf("sudo chown %s %s", c.Client.User(), tempPath)); err != nil || !res.Ok() {
		return fmt.Errorf("failed to sudo chown on %s: %s", tempPath, resultError(res, err))
	}

	return c.sftpDownload(tempPath, localPath)
}

func resultError(res RunResult, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
}

func isPermissionDenied(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == uint32(sftp.ErrSshFxPermissionDenied) {
			return true
		}
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "permission denied") || strings.Contains(errMsg, "ssh_fx_permission_denied")
}
