package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jgivc/mfdl/internal/adapter/httpadapter"
	"github.com/jgivc/mfdl/internal/common"
	"github.com/jgivc/mfdl/internal/entity"
)

const (
	requestKind = "api"

	fieldError    = "error"
	fieldResponse = "response"

	selectorInfo    = "get_info"
	selectorContent = "get_content"
)

type apiRepository struct {
	base    string
	req     *httpadapter.Requester
	retrier *httpadapter.Retrier
	log     *slog.Logger
}

// NewAPIRepository creates the remote API client. base is the API root, e.g. https://www.mediafire.com/api.
func NewAPIRepository(base string, req *httpadapter.Requester, retrier *httpadapter.Retrier, log *slog.Logger) *apiRepository {
	return &apiRepository{
		base:    strings.TrimRight(base, "/"),
		req:     req,
		retrier: retrier,
		log:     log.With(slog.String("item", "APIRepository")),
	}
}

// QueryAPI sends a GET to endpoint and returns the "response" object of the envelope.
// Failed attempts are retried, see httpadapter.Retrier. It returns common.ErrAborted
// if the run was aborted while retrying.
func (r *apiRepository) QueryAPI(ctx context.Context, endpoint string) (json.RawMessage, error) {
	var result json.RawMessage

	_, err := r.retrier.Do(ctx, "query_api", func(ctx context.Context, _ *httpadapter.Budget) *httpadapter.Failure {
		data, status, err := r.query(ctx, endpoint)
		if err == nil {
			result = data

			return nil
		}

		f := httpadapter.Classify(err, status)

		var re *common.RequestError
		if status == http.StatusForbidden && errors.As(err, &re) && !common.IsGeneric(err) {
			f.Stop = true
		}

		return f
	})
	if err != nil {
		if !errors.Is(err, common.ErrAborted) {
			r.log.Error("Unable to connect. Aborting", slog.String("endpoint", endpoint))
		}

		return nil, err
	}

	return result, nil
}

func (r *apiRepository) query(ctx context.Context, endpoint string) (json.RawMessage, int, error) {
	r.log.Debug("Sending API request", slog.String("endpoint", endpoint))

	resp, err := r.req.Get(ctx, requestKind, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &httpadapter.TransportError{Op: "payload", Err: err}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "json") {
		return nil, resp.StatusCode, &httpadapter.TransportError{
			Op:  "response",
			Err: fmt.Errorf("unexpected content type %q, status %d", ct, resp.StatusCode),
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, resp.StatusCode, fmt.Errorf("cannot decode api response: %w", err)
		}
		envelope = nil
	}

	switch {
	case envelope == nil:
		r.log.Error("Unknown API response", slog.Bool("fatal", true), slog.String("body", string(bytes.TrimSpace(body))))

		return nil, resp.StatusCode, common.NewRequestError(common.EUNKNOWNRESPONSE)
	case envelope[fieldError] != nil:
		return nil, resp.StatusCode, common.NewRequestError(common.ESESSIONTOKEN)
	case envelope[fieldResponse] != nil:
		return envelope[fieldResponse], resp.StatusCode, nil
	}

	return nil, resp.StatusCode, common.NewRequestError(common.EUNK)
}

func (r *apiRepository) queryInto(ctx context.Context, endpoint string, v any) error {
	data, err := r.QueryAPI(ctx, endpoint)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cannot decode api response %s: %w", endpoint, err)
	}

	return nil
}

func (r *apiRepository) folderEndpoint(selector string, contentType entity.ContentType, folderKey string, chunk int) string {
	return fmt.Sprintf(
		"%s/%s/folder/%s.php?r=utga&content_type=%s&filter=all&order_by=name&order_direction=asc&chunk=%d&version=%s&folder_key=%s&response_format=json",
		r.base, entity.APIVersion, selector, contentType, chunk, entity.APIVersion, url.QueryEscape(folderKey),
	)
}

func (r *apiRepository) GetFolderInfo(ctx context.Context, folderKey string) (*entity.FolderInfo, error) {
	var resp entity.FolderInfoResponse
	if err := r.queryInto(ctx, r.folderEndpoint(selectorInfo, entity.ContentFolder, folderKey, 1), &resp); err != nil {
		return nil, err
	}

	if resp.FolderInfo.FolderKey == "" {
		resp.FolderInfo.FolderKey = folderKey
	}

	return &resp.FolderInfo, nil
}

// GetFolderContent requests chunks 1, 2, ... in order until the server reports no more chunks
// and returns the union of all of them.
func (r *apiRepository) GetFolderContent(ctx context.Context, contentType entity.ContentType, folderKey string) (*entity.FolderContent, error) {
	result := &entity.FolderContent{ContentType: contentType}

	for chunk := 1; ; chunk++ {
		var resp entity.FolderContentResponse
		if err := r.queryInto(ctx, r.folderEndpoint(selectorContent, contentType, folderKey, chunk), &resp); err != nil {
			return nil, err
		}

		content := resp.FolderContent
		result.Files = append(result.Files, content.Files...)
		result.Folders = append(result.Folders, content.Folders...)
		result.ChunkNumber = entity.Numeric(chunk)

		if !content.HasMore() {
			break
		}
	}

	result.MoreChunks = "no"

	return result, nil
}

// GetFileInfo fetches single file metadata. The response must be successful and of the supported API version.
func (r *apiRepository) GetFileInfo(ctx context.Context, quickKey string) (*entity.FileInfo, error) {
	endpoint := fmt.Sprintf("%s/file/get_info.php?quick_key=%s&response_format=json", r.base, url.QueryEscape(quickKey))

	var resp entity.FileInfoResponse
	if err := r.queryInto(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Result != entity.ResultSuccess {
		return nil, common.NewValidationError("result was %q", resp.Result)
	}

	if resp.CurrentAPIVersion != entity.APIVersion {
		return nil, common.NewValidationError("unexpected api version %q", resp.CurrentAPIVersion)
	}

	return &resp.FileInfo, nil
}
