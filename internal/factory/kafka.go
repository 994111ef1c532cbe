package factory

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/IBM/sarama"

	"github.com/praevisio/vigilance/internal/config"
)

func CreateKafkaConsumer(kafkaConfig config.Kafka) (sarama.ConsumerGroup, error) {
	conf, err := createKafkaConfig(kafkaConfig)
	if err != nil {
		return nil, err
	}

	urls := strings.Split(kafkaConfig.Broker.URLs, ",")

	ret, err := sarama.NewConsumerGroup(urls, kafkaConfig.Consumer.Group, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	return ret, nil
}

func createKafkaConfig(kafkaConfig config.Kafka) (*sarama.Config, error) {
	conf := sarama.NewConfig()

	conf.Consumer.Offsets.AutoCommit.Enable = true
	conf.Consumer.Return.Errors = true

	// Operational events are only relevant while fresh
	conf.Consumer.Offsets.Initial = sarama.OffsetNewest

	conf.ClientID = computeClientID(kafkaConfig.Consumer.Group)

	version, err := sarama.ParseKafkaVersion(kafkaConfig.Broker.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kafka version: %w", err)
	}

	conf.Version = version

	err = conf.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}

	return conf, nil
}

func computeClientID(groupID string) string {
	prefix, err := os.Hostname()
	if err != nil {
		prefix = fmt.Sprintf("clientid-%v", groupID)
	}

	return fmt.Sprintf("%s-%x", prefix, rand.Int31())
}
