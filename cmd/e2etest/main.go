package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/encrypted-survey/api/client"
	"github.com/vocdoni/encrypted-survey/credential"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/decryptor"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/service"
	"github.com/vocdoni/encrypted-survey/storage"
	"github.com/vocdoni/encrypted-survey/surveysync"
	"github.com/vocdoni/encrypted-survey/types"
)

func main() {
	host := flag.String("host", "", "survey node API URL, empty to start a local node")
	privKey := flag.String("privkey", "", "hex private key of the survey owner, random if empty")
	nVoters := flag.Int("voters", 10, "number of voters")
	maxWeight := flag.Uint64("max-weight", 5, "largest vote weight")
	cacheSecret := flag.String("cache-secret", "", "hex secret to keep the owner credentials in an encrypted cache, memory cache if empty")
	flag.Parse()
	log.Init("debug", "stdout", nil)

	ctx := context.Background()
	start := time.Now()

	if *host == "" {
		ledgers, err := service.NewLedger(storage.New(memdb.New()), gateway.Config{})
		if err != nil {
			log.Fatal(err)
		}
		api := service.NewAPI(ledgers.Registry(), ledgers.Gateway(), "127.0.0.1", 0)
		if err := api.Start(ctx); err != nil {
			log.Fatal(err)
		}
		defer api.Stop()
		h, p := api.HostPort()
		*host = fmt.Sprintf("http://%s:%d", h, p)
	}
	cli, err := client.New(*host)
	if err != nil {
		log.Fatal(err)
	}

	ownerKey := ethereum.NewSignKeys()
	if *privKey != "" {
		err = ownerKey.AddHexKey(*privKey)
	} else {
		err = ownerKey.Generate()
	}
	if err != nil {
		log.Fatal(err)
	}
	owner := client.NewAccount(cli, ownerKey)

	var cache credential.Cache
	if *cacheSecret != "" {
		var secret types.HexBytes
		if err := secret.FromString(*cacheSecret); err != nil {
			log.Fatalf("invalid cache secret: %v", err)
		}
		if cache, err = credential.NewStorageCache(storage.New(memdb.New()), secret); err != nil {
			log.Fatal(err)
		}
	} else if cache, err = credential.NewMemoryCache(credential.DefaultMemoryCacheSize); err != nil {
		log.Fatal(err)
	}

	deployed, err := owner.Deploy(ctx)
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("survey deployed", "address", deployed.Address.Hex(), "txId", deployed.TxID.String())

	ownerView, err := surveysync.New(surveysync.Config{
		Node:      cli,
		Account:   owner,
		Signer:    ownerKey,
		Decryptor: decryptor.New(cli, cache),
		Survey:    deployed.Address,
	})
	if err != nil {
		log.Fatal(err)
	}
	options := []string{"red", "green", "blue"}
	if err := ownerView.ConfigureSurvey(ctx, "Favourite color?", options); err != nil {
		log.Fatal(err)
	}
	log.Info(ownerView.Status())

	// every voter encrypts locally and submits a weighted vote
	expected := make([]uint64, len(options))
	for i := 0; i < *nVoters; i++ {
		key := ethereum.NewSignKeys()
		if err := key.Generate(); err != nil {
			log.Fatal(err)
		}
		voter, err := surveysync.New(surveysync.Config{
			Node:    cli,
			Account: client.NewAccount(cli, key),
			Survey:  deployed.Address,
		})
		if err != nil {
			log.Fatal(err)
		}
		option := rand.IntN(len(options))
		weight := 1 + rand.Uint64N(*maxWeight)
		if err := voter.SubmitVote(ctx, uint32(option), weight); err != nil {
			log.Fatal(err)
		}
		expected[option] += weight
		log.Infow("vote submitted", "voter", key.Address().Hex(), "status", voter.Status())
	}

	if err := ownerView.FinalizeSurvey(ctx); err != nil {
		log.Fatal(err)
	}
	for i := range options {
		total, err := ownerView.DecryptOption(ctx, uint32(i))
		if err != nil {
			log.Fatal(err)
		}
		if total.Uint64() != expected[i] {
			log.Fatalf("option %d: decrypted %s, expected %d", i, total, expected[i])
		}
		log.Infow("option result", "option", options[i], "total", total.String())
	}
	log.Infow("e2e test passed", "voters", *nVoters, "elapsed", time.Since(start).String())
}
