package api

import (
	"context"
	"math"
	"time"

	"rentacar/internal/domain"
	"rentacar/internal/models"
	"rentacar/internal/pricing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// CatalogServiceName is the gRPC service answering rental price quotes.
const CatalogServiceName = "rentacar.v1.Catalog"

const quoteMethod = "/" + CatalogServiceName + "/Quote"

// Quoter prices a rental without a signed-in user.
type Quoter interface {
	Quote(ctx context.Context, carID int64, start, end time.Time, withDriver bool) (*models.Car, pricing.Quote, error)
}

type catalogService interface {
	quote(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type catalogServer struct {
	quoter Quoter
}

// quote reads car_id, start, end (YYYY-MM-DD) and with_driver.
func (s *catalogServer) quote(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	id := f["car_id"].GetNumberValue()
	if id < 1 || id != math.Trunc(id) || id > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "car_id must be a positive integer")
	}
	start, err := pricing.ParseDate(f["start"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	end, err := pricing.ParseDate(f["end"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	car, q, err := s.quoter.Quote(ctx, int64(id), start, end, f["with_driver"].GetBoolValue())
	if err != nil {
		return nil, grpcError(err)
	}
	return structpb.NewStruct(map[string]any{
		"car_id":     car.ID,
		"car":        car.Brand + " " + car.Name,
		"available":  car.Available,
		"days":       q.Days,
		"subtotal":   q.Subtotal,
		"driver_fee": q.DriverFee,
		"total":      q.Total,
		"display":    pricing.FormatRupiah(q.Total),
	})
}

var grpcCodes = map[domain.Kind]codes.Code{
	domain.KindValidation:      codes.InvalidArgument,
	domain.KindNotFound:        codes.NotFound,
	domain.KindUnauthenticated: codes.Unauthenticated,
	domain.KindForbidden:       codes.PermissionDenied,
}

func grpcError(err error) error {
	code, ok := grpcCodes[domain.KindOf(err)]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, domain.UserMessage(err))
}

func quoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(catalogService)
	if interceptor == nil {
		return s.quote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: quoteMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.quote(ctx, req.(*structpb.Struct))
	})
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*catalogService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Quote", Handler: quoteHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// QuoteCar calls Catalog/Quote on conn.
func QuoteCar(ctx context.Context, conn grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, quoteMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
