package server

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the Alignment service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *Client) ListCorpora(ctx context.Context, in *ListCorporaRequest, opts ...grpc.CallOption) (*ListCorporaResponse, error) {
	out := new(ListCorporaResponse)
	if err := c.invoke(ctx, "ListCorpora", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	out := new(SearchResponse)
	if err := c.invoke(ctx, "Search", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchVerses(ctx context.Context, in *FetchVersesRequest, opts ...grpc.CallOption) (*FetchVersesResponse, error) {
	out := new(FetchVersesResponse)
	if err := c.invoke(ctx, "FetchVerses", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchWindow(ctx context.Context, in *FetchWindowRequest, opts ...grpc.CallOption) (*WindowResponse, error) {
	out := new(WindowResponse)
	if err := c.invoke(ctx, "FetchWindow", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LookupReference(ctx context.Context, in *LookupReferenceRequest, opts ...grpc.CallOption) (*WindowResponse, error) {
	out := new(WindowResponse)
	if err := c.invoke(ctx, "LookupReference", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	out := new(ResolveResponse)
	if err := c.invoke(ctx, "Resolve", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LookupMedia(ctx context.Context, in *LookupMediaRequest, opts ...grpc.CallOption) (*LookupMediaResponse, error) {
	out := new(LookupMediaResponse)
	if err := c.invoke(ctx, "LookupMedia", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
