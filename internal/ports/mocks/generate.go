//go:generate mockgen -source=../record_source.go -destination=./mock_record_source.go -package=mocks
//go:generate mockgen -source=../delivery.go      -destination=./mock_delivery.go      -package=mocks
//go:generate mockgen -source=../logger.go        -destination=./mock_logger.go        -package=mocks

package mocks
