package client

import (
	"context"

	"github.com/xxxsen/davconnector/server/model"
)

type IClient interface {
	Login(ctx context.Context, user string, passwd string, server string) error
	Logout(ctx context.Context) error
	URLInfo(ctx context.Context, u string) (*model.URLInfoResponse, error)
	ClientOptions(ctx context.Context) (*model.ClientOptions, error)
	OpenDocument(ctx context.Context, u string, userName string) (*model.OpenDocumentResponse, error)
	SyncDocument(ctx context.Context, id string, content []byte) error
	SaveDocument(ctx context.Context, id string) error
	CloseDocument(ctx context.Context, id string) error
}
