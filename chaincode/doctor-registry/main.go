package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/chaincode/doctor-registry/doctorregistry"
)

func main() {
	doctorRegistryChaincode, err := contractapi.NewChaincode(&doctorregistry.SmartContract{})
	if err != nil {
		log.Panicf("Error creating DoctorRegistry chaincode: %v", err)
	}

	if err := doctorRegistryChaincode.Start(); err != nil {
		log.Panicf("Error starting DoctorRegistry chaincode: %v", err)
	}
}
