//go:generate mockgen -source=../broker_client.go        -destination=./mock_broker_client.go        -package=mocks
//go:generate mockgen -source=../message_handler.go      -destination=./mock_message_handler.go      -package=mocks
//go:generate mockgen -source=../delivery_journal.go     -destination=./mock_delivery_journal.go     -package=mocks
//go:generate mockgen -source=../history_repository.go   -destination=./mock_history_repository.go   -package=mocks
//go:generate mockgen -source=../history_cache.go        -destination=./mock_history_cache.go        -package=mocks
//go:generate mockgen -source=../history_read_service.go -destination=./mock_history_read_service.go -package=mocks
//go:generate mockgen -source=../message_consumer.go     -destination=./mock_message_consumer.go     -package=mocks
//go:generate mockgen -source=../logger.go               -destination=./mock_logger.go               -package=mocks

package mocks
